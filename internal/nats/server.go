package nats

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

const (
	defaultPort       = 4222
	defaultHost       = "127.0.0.1"
	defaultName       = "qhynode"
	defaultMaxPayload = 64 * 1024
	readyTimeout      = 5 * time.Second
)

// RandomPort asks the embedded server to pick a free port.
const RandomPort = server.RANDOM_PORT

// ServerOptions configures the embedded NATS server.
type ServerOptions struct {
	Port int
	Host string
	Name string
	// MaxPayload bounds a single message. Capture messages carry metadata
	// only, never pixel data.
	MaxPayload int32
	Logger     *slog.Logger
}

// DefaultServerOptions returns the loopback defaults for the embedded server.
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		Port:       defaultPort,
		Host:       defaultHost,
		Name:       defaultName,
		MaxPayload: defaultMaxPayload,
	}
}

// Server wraps an embedded NATS server for hosts without a broker.
type Server struct {
	ns     *server.Server
	opts   ServerOptions
	logger *slog.Logger
}

// NewServer creates a new embedded NATS server. Zero fields take defaults.
func NewServer(opts ServerOptions) *Server {
	def := DefaultServerOptions()
	if opts.Port == 0 {
		opts.Port = def.Port
	}
	if opts.Host == "" {
		opts.Host = def.Host
	}
	if opts.Name == "" {
		opts.Name = def.Name
	}
	if opts.MaxPayload <= 0 {
		opts.MaxPayload = def.MaxPayload
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		opts:   opts,
		logger: logger.With("component", "nats-server"),
	}
}

// Start starts the embedded server and waits until it accepts clients.
func (s *Server) Start() error {
	if s.ns != nil {
		return errors.New("NATS server already started")
	}

	ns, err := server.NewServer(&server.Options{
		Host:       s.opts.Host,
		Port:       s.opts.Port,
		ServerName: s.opts.Name,
		NoLog:      true, // logged through slog below
		NoSigs:     true, // signals belong to the main process
		MaxPayload: s.opts.MaxPayload,
	})
	if err != nil {
		return fmt.Errorf("failed to create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return fmt.Errorf("NATS server failed to start within %s", readyTimeout)
	}

	s.ns = ns
	s.logger.Info("NATS server started", "url", s.ClientURL())
	return nil
}

// Stop shuts the server down. Safe to call when not running.
func (s *Server) Stop() {
	if s.ns == nil {
		return
	}
	s.logger.Info("Stopping NATS server")
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
	s.ns = nil
}

// ClientURL returns the URL clients should use to connect.
func (s *Server) ClientURL() string {
	if s.ns == nil {
		return fmt.Sprintf("nats://%s:%d", s.opts.Host, s.opts.Port)
	}
	return s.ns.ClientURL()
}

// IsRunning returns true if the server is running and accepting connections.
func (s *Server) IsRunning() bool {
	return s.ns != nil && s.ns.Running()
}

// NumClients returns the number of connected clients.
func (s *Server) NumClients() int {
	if s.ns == nil {
		return 0
	}
	return s.ns.NumClients()
}
