package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/neovim/go-client/nvim"
	"golang.org/x/sync/errgroup"

	"diffreview/engine"
	"diffreview/logger"
	"diffreview/metrics"
	"diffreview/provider"
)

type Daemon struct {
	config      Config
	engine      *engine.Engine
	tracker     *metrics.MetricsTracker
	listener    net.Listener
	socketPath  string
	pidPath     string
	clientCount int64
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewDaemon(config Config) (*Daemon, error) {
	prov := provider.NewProvider(&config.Provider)

	eng := engine.NewEngine(prov, engine.EngineConfig{
		RequestTimeout: config.requestTimeout(),
		TriggerDelay:   config.triggerDelay(),
	}, engine.SystemClock)

	return &Daemon{
		config:     config,
		engine:     eng,
		tracker:    metrics.NewTracker(config.MetricsURL, filepath.Join(execDir(), "data")),
		socketPath: getSocketPath(),
		pidPath:    getPidPath(),
	}, nil
}

// Start serves connections until a signal arrives, Stop is called or the
// idle monitor gives up on waiting for clients
func (d *Daemon) Start(ctx context.Context) error {
	ctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	d.ctx, d.cancel = context.WithCancel(ctx)
	defer d.cancel()

	d.writePidFile()
	defer d.removePidFile()

	if err := d.setupSocket(); err != nil {
		return err
	}
	defer d.cleanup()

	logger.Info("daemon listening on socket: %s", d.socketPath)

	g, gctx := errgroup.WithContext(d.ctx)
	g.Go(func() error {
		return d.acceptConnections(gctx)
	})
	g.Go(func() error {
		d.monitorIdleShutdown(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("daemon shutting down...")
		d.shutdown()
		return nil
	})

	err := g.Wait()
	d.tracker.Flush()
	return err
}

func (d *Daemon) setupSocket() error {
	// Remove existing socket
	os.Remove(d.socketPath)

	listener, err := net.Listen("unix", d.socketPath)
	if err != nil {
		return err
	}
	d.listener = listener
	return nil
}

func (d *Daemon) acceptConnections(ctx context.Context) error {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Error("error accepting connection: %v", err)
			continue
		}

		atomic.AddInt64(&d.clientCount, 1)
		logger.Info("new client connected, total clients: %d", atomic.LoadInt64(&d.clientCount))
		go d.handleConnection(ctx, conn)
	}
}

func (d *Daemon) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer func() {
		atomic.AddInt64(&d.clientCount, -1)
		logger.Info("client disconnected, remaining clients: %d", atomic.LoadInt64(&d.clientCount))
	}()

	n, err := nvim.New(conn, conn, conn, log.Printf)
	if err != nil {
		logger.Error("error creating nvim client: %v", err)
		return
	}

	v := newView(d, n)
	if err := v.register(); err != nil {
		logger.Error("error registering handlers: %v", err)
		return
	}
	defer v.closeAll()

	stop := context.AfterFunc(ctx, func() { n.Close() })
	defer stop()

	if err := n.Serve(); err != nil && err != io.EOF && ctx.Err() == nil {
		logger.Error("error serving connection: %v", err)
	}
}

func (d *Daemon) monitorIdleShutdown(ctx context.Context) {
	// In debug mode, shut down immediately when no clients are connected
	if d.config.DebugImmediateShutdown {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if atomic.LoadInt64(&d.clientCount) == 0 {
					logger.Info("debug mode: no clients connected, shutting down daemon immediately")
					d.Stop()
					return
				}
			}
		}
	}

	idleTimer := time.NewTimer(30 * time.Second)
	defer idleTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-idleTimer.C:
			if atomic.LoadInt64(&d.clientCount) == 0 {
				logger.Info("no clients connected for timeout period, shutting down daemon")
				d.Stop()
				return
			}
		}

		if atomic.LoadInt64(&d.clientCount) == 0 {
			idleTimer.Reset(5 * time.Second)
		} else {
			idleTimer.Reset(30 * time.Second)
		}
	}
}

// Stop asks a running daemon to shut down
func (d *Daemon) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *Daemon) shutdown() {
	d.engine.Stop()
	if d.listener != nil {
		d.listener.Close()
	}
}

func (d *Daemon) cleanup() {
	os.Remove(d.socketPath)
}

func (d *Daemon) writePidFile() {
	pid := os.Getpid()
	if err := os.WriteFile(d.pidPath, []byte(strconv.Itoa(pid)), 0644); err != nil {
		logger.Warn("could not write PID file: %v", err)
	}
	logger.Info("server started with PID %d", pid)
}

func (d *Daemon) removePidFile() {
	if err := os.Remove(d.pidPath); err != nil && !os.IsNotExist(err) {
		logger.Warn("could not remove PID file: %v", err)
	}
}
