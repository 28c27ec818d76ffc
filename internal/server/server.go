package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"mediashelf/internal/config"
	"mediashelf/internal/events"
	"mediashelf/internal/logging"
	"mediashelf/internal/metrics"
	"mediashelf/internal/registry"
	"mediashelf/internal/sharing"
	"mediashelf/internal/tokenauth"
)

// State is the lifecycle state of the sharing server
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

var (
	// ErrNoLibrary is returned by Start when no library is shared
	ErrNoLibrary = errors.New("no library to share")
	// ErrNotStopped is returned by Start unless the server is stopped
	ErrNotStopped = errors.New("server is not stopped")
)

// Options wires the server to its collaborators
type Options struct {
	Config    *config.AppConfig
	Library   *registry.Library
	DB        *gorm.DB
	Users     *sharing.UserService
	Validator *tokenauth.Validator
	Hub       *events.Hub
	Metrics   *metrics.Metrics
	Logger    *logging.Logger
}

// Server shares one library over HTTP and websocket
type Server struct {
	opts Options
	log  zerolog.Logger

	mu     sync.Mutex
	state  State
	app    *fiber.App
	served bool
	addr   string
	done   chan error
}

// New creates a stopped server and subscribes its hub to library changes
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("server config is required")
	}
	if opts.Users == nil {
		return nil, errors.New("shared user service is required")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}
	if opts.Validator == nil {
		opts.Validator = tokenauth.NewValidator()
	}
	if opts.Hub == nil {
		opts.Hub = events.NewHub(opts.Metrics)
	}
	if opts.Library != nil {
		opts.Library.Store.OnChange(opts.Hub.Listener())
	}

	s := &Server{
		opts:  opts,
		log:   *logging.WithModule("server"),
		state: StateStopped,
	}
	if opts.Library != nil {
		s.app = s.newApp()
	}
	return s, nil
}

// App returns the fiber application serving the current library
func (s *Server) App() *fiber.App {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.app
}

// State returns the lifecycle state
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the bound listen address while running
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Start binds the listener and serves in the background. Listen errors return
// the server to stopped.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return ErrNotStopped
	}
	if s.opts.Library == nil || s.opts.Library.Root == "" {
		s.mu.Unlock()
		return ErrNoLibrary
	}
	s.state = StateStarting
	if s.served {
		// a shut down fiber app cannot serve again
		s.app = s.newApp()
	}
	app := s.app
	s.mu.Unlock()

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.opts.Config.Server.Address())
	if err != nil {
		s.setState(StateStopped)
		return fmt.Errorf("listen on %s: %w", s.opts.Config.Server.Address(), err)
	}

	done := make(chan error, 1)
	s.mu.Lock()
	s.state = StateRunning
	s.served = true
	s.addr = ln.Addr().String()
	s.done = done
	s.mu.Unlock()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("library", s.opts.Library.Root).
		Msg("Sharing server started")

	go func() {
		err := app.Listener(ln)
		s.mu.Lock()
		if s.state == StateRunning {
			// the listener died on its own
			s.state = StateStopped
			s.addr = ""
		}
		s.mu.Unlock()
		if err != nil {
			s.log.Error().Err(err).Msg("Sharing server stopped unexpectedly")
		}
		done <- err
	}()
	return nil
}

// Stop shuts the server down, waiting for in-flight requests until ctx ends.
// Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	app, done := s.app, s.done
	s.mu.Unlock()

	err := app.ShutdownWithContext(ctx)
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}

	s.mu.Lock()
	s.state = StateStopped
	s.addr = ""
	s.mu.Unlock()
	s.log.Info().Msg("Sharing server stopped")
	return err
}
