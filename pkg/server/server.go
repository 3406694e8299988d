// Package server provides the MCP server of the osmgrid service over stdio.
package server

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/osmgrid/pkg/tools"
	"github.com/NERVsystems/osmgrid/pkg/version"
)

const (
	// ServerName is the name of the MCP server
	ServerName = "osmgrid-mcp-server"

	// DefaultParentCheckInterval is how often the parent process is polled.
	DefaultParentCheckInterval = 5 * time.Second
)

// Server encapsulates the MCP server with the tile grid tools.
type Server struct {
	srv    *mcpserver.MCPServer
	logger *slog.Logger
	stdin  io.Reader
	stdout io.Writer

	parentInterval time.Duration

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	doneCh   chan struct{}
	doneOnce sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithIO replaces stdin and stdout, mainly for tests.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(s *Server) {
		s.stdin, s.stdout = in, out
	}
}

// WithParentMonitor shuts the server down when the parent process exits.
// A non-positive interval disables the monitor.
func WithParentMonitor(interval time.Duration) Option {
	return func(s *Server) {
		s.parentInterval = interval
	}
}

// NewServer creates an MCP server with every tool and prompt of registry
// registered.
func NewServer(registry *tools.Registry, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mcp_server")
	logger.Info("initializing osmgrid MCP server",
		"name", ServerName,
		"version", version.BuildVersion)

	srv := mcpserver.NewMCPServer(
		ServerName,
		version.BuildVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithRecovery(),
	)
	registry.RegisterAll(srv)

	s := &Server{
		srv:    srv,
		logger: logger,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		doneCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run serves MCP over stdio until the input ends or Shutdown is called.
func (s *Server) Run() error {
	return s.RunWithContext(context.Background())
}

// RunWithContext serves MCP over stdio until ctx is cancelled, the input
// ends or Shutdown is called. A second call while running returns nil
// immediately.
func (s *Server) RunWithContext(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.doneOnce.Do(func() { close(s.doneCh) })
	}()

	if s.parentInterval > 0 {
		go s.monitorParent(ctx, os.Getppid())
	}

	stdio := mcpserver.NewStdioServer(s.srv)
	stdio.SetErrorLogger(log.New(io.Discard, "", 0))

	s.logger.Info("serving MCP over stdio")
	err := stdio.Listen(ctx, s.stdin, s.stdout)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
		s.logger.Error("server error", "error", err)
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}

// Shutdown initiates a graceful shutdown of the server.
// It does not block and returns immediately.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// WaitForShutdown blocks until a started server has fully shut down.
func (s *Server) WaitForShutdown() {
	<-s.doneCh
}

// GetMCPServer returns the underlying MCP server instance
func (s *Server) GetMCPServer() *mcpserver.MCPServer {
	return s.srv
}

// monitorParent shuts the server down once ppid is gone. An MCP client
// that dies without closing our stdin would otherwise leave us running.
func (s *Server) monitorParent(ctx context.Context, ppid int) {
	s.logger.Debug("monitoring parent process", "ppid", ppid, "interval", s.parentInterval)
	ticker := time.NewTicker(s.parentInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !isProcessRunning(ppid) || os.Getppid() != ppid {
				s.logger.Warn("parent process exited, shutting down", "ppid", ppid)
				s.Shutdown()
				return
			}
		}
	}
}

// isProcessRunning reports whether a process with pid exists.
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
