package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"diffreview/logger"
	"diffreview/types"
)

const configEnv = "DIFFREVIEW_CONFIG"

type Config struct {
	NsID                   int                  `json:"ns_id" yaml:"ns_id"`
	LogLevel               string               `json:"log_level" yaml:"log_level"` // trace, debug, info, warn, error
	Provider               types.ProviderConfig `json:"provider" yaml:"provider"`
	RequestTimeout         int                  `json:"request_timeout" yaml:"request_timeout"` // in milliseconds
	TriggerDelay           int                  `json:"trigger_delay" yaml:"trigger_delay"`     // in milliseconds
	MetricsURL             string               `json:"metrics_url" yaml:"metrics_url"`
	DebugImmediateShutdown bool                 `json:"debug_immediate_shutdown" yaml:"debug_immediate_shutdown"`
}

func defaultConfig() Config {
	return Config{
		LogLevel: "info",
		Provider: types.ProviderConfig{
			URL:              "https://api.openai.com",
			Model:            "gpt-4o-mini",
			Temperature:      0.2,
			MaxTokens:        1024,
			MaxContextTokens: 4000,
		},
		RequestTimeout: 30000,
		TriggerDelay:   500,
	}
}

// loadConfig reads the YAML file at path, or the JSON in DIFFREVIEW_CONFIG
// when path is empty. Unset fields keep their defaults.
func loadConfig(path string) (Config, error) {
	config := defaultConfig()

	switch {
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return config, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return config, fmt.Errorf("parse config file: %w", err)
		}
	case os.Getenv(configEnv) != "":
		if err := json.Unmarshal([]byte(os.Getenv(configEnv)), &config); err != nil {
			return config, fmt.Errorf("invalid %s: %w", configEnv, err)
		}
	}

	if config.Provider.APIKey == "" {
		config.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if err := config.validate(); err != nil {
		return config, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func (c Config) validate() error {
	if c.Provider.URL == "" {
		return fmt.Errorf("provider.url cannot be empty")
	}
	if c.Provider.Model == "" {
		return fmt.Errorf("provider.model cannot be empty")
	}
	if c.RequestTimeout < 0 || c.TriggerDelay < 0 {
		return fmt.Errorf("request_timeout and trigger_delay must not be negative")
	}
	return nil
}

func (c Config) requestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Millisecond
}

func (c Config) triggerDelay() time.Duration {
	return time.Duration(c.TriggerDelay) * time.Millisecond
}

func execDir() string {
	execPath, err := os.Executable()
	if err != nil {
		log.Fatalf("error getting executable path: %v", err)
	}
	return filepath.Dir(execPath)
}

// Setup logger to log to a file in the same directory as the executable
// Caller must defer logger.Close()
func setupLogger(logLevel string) *logger.LimitedLogger {
	logPath := filepath.Join(execDir(), "diffreview.log")

	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening file: %v", err)
	}

	limitedLogger := logger.NewLimitedLogger(f, logger.ParseLogLevel(logLevel))
	log.SetOutput(limitedLogger)
	return limitedLogger
}

func getSocketPath() string {
	return filepath.Join(execDir(), "diffreview.sock")
}

func getPidPath() string {
	return filepath.Join(execDir(), "diffreview.pid")
}

func isDaemonRunning() (bool, int) {
	data, err := os.ReadFile(getPidPath())
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}

	// On Unix, Signal(0) checks if process exists
	err = process.Signal(syscall.Signal(0))
	return err == nil, pid
}

func runDaemon(ctx context.Context, cmd *cli.Command) error {
	config, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	limitedLogger := setupLogger(config.LogLevel)
	defer limitedLogger.Close()
	logger.Info("config: model=%s url=%s timeout=%dms delay=%dms", config.Provider.Model, config.Provider.URL, config.RequestTimeout, config.TriggerDelay)

	daemon, err := NewDaemon(config)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	return daemon.Start(ctx)
}

func runClient(ctx context.Context, cmd *cli.Command) error {
	client := NewClient(cmd.String("config"))

	if err := client.EnsureDaemonRunning(); err != nil {
		return fmt.Errorf("ensure daemon is running: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	return nil
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:      "diffreview",
		Usage:     "Review proposed code edits chunk by chunk",
		UsageText: "diffreview [global options] [command]",
		Description: `Without a command, diffreview relays the editor's msgpack RPC stream on
stdin/stdout to the review daemon, starting it if needed.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file (default: JSON in " + configEnv + ")",
			},
		},
		Action: runClient,
		Commands: []*cli.Command{
			{
				Name:   "daemon",
				Usage:  "Run the review daemon on its unix socket",
				Action: runDaemon,
			},
			newDiffCmd(),
			newApplyCmd(),
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
