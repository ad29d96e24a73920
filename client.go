package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"diffreview/logger"
)

type Client struct {
	socketPath string
	configPath string
}

func NewClient(configPath string) *Client {
	return &Client{
		socketPath: getSocketPath(),
		configPath: configPath,
	}
}

// Connect relays stdin/stdout to the daemon socket until either side closes
func (c *Client) Connect(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		io.Copy(conn, os.Stdin)
		conn.Close()
	}()

	io.Copy(os.Stdout, conn)
	return nil
}

func (c *Client) EnsureDaemonRunning() error {
	running, pid := isDaemonRunning()
	if running {
		logger.Debug("daemon already running with PID %d", pid)
		return nil
	}

	return c.startDaemon()
}

func (c *Client) daemonArgs() []string {
	args := []string{os.Args[0]}
	if c.configPath != "" {
		args = append(args, "--config", c.configPath)
	}
	return append(args, "daemon")
}

func (c *Client) startDaemon() error {
	logger.Debug("starting daemon...")

	// The daemon inherits the environment, including DIFFREVIEW_CONFIG
	_, err := os.StartProcess(os.Args[0], c.daemonArgs(), &os.ProcAttr{
		Env:   os.Environ(),
		Files: []*os.File{nil, nil, nil},
	})
	if err != nil {
		return err
	}

	return c.waitForDaemon()
}

func (c *Client) waitForDaemon() error {
	for range 50 { // Wait up to 5 seconds
		if running, _ := isDaemonRunning(); running {
			if _, err := os.Stat(c.socketPath); err == nil {
				logger.Debug("daemon started successfully")
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon failed to start within timeout")
}
