// Package shutdown runs ordered shutdown hooks when the process is asked
// to stop.
package shutdown

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gabrielmiguelok/kycform/pkg/logging"
)

// Common shutdown errors.
var (
	ErrShutdownTimeout = errors.New("shutdown timed out")
	ErrAlreadyClosed   = errors.New("shutdown handler already closed")
)

// Hook priorities. Lower runs earlier.
const (
	PriorityHTTP      = 100
	PriorityLive      = 200
	PriorityStore     = 300
	PriorityTelemetry = 900
)

// Hook is a named shutdown step.
type Hook struct {
	Name     string
	Priority int
	Fn       func(ctx context.Context) error
}

// Config configures the shutdown handler.
type Config struct {
	// Timeout bounds the whole shutdown.
	Timeout time.Duration

	// Signals trigger shutdown in Wait.
	Signals []os.Signal

	Logger logging.Logger
}

// DefaultConfig returns a 30s timeout on SIGINT and SIGTERM.
func DefaultConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
		Signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
		Logger:  logging.NopLogger{},
	}
}

// Handler manages graceful shutdown.
type Handler struct {
	config *Config
	hooks  []Hook
	done   chan struct{}
	closed bool
	mu     sync.Mutex
}

// NewHandler creates a shutdown handler. A nil config uses DefaultConfig.
func NewHandler(config *Config) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	// signal.Notify with no signals would relay every signal.
	if len(config.Signals) == 0 {
		config.Signals = defaults.Signals
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	return &Handler{
		config: config,
		done:   make(chan struct{}),
	}
}

// Register adds a shutdown hook.
func (h *Handler) Register(hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// RegisterFunc registers fn as a hook.
func (h *Handler) RegisterFunc(name string, priority int, fn func(ctx context.Context) error) {
	h.Register(Hook{Name: name, Priority: priority, Fn: fn})
}

// Wait blocks until a configured signal arrives or ctx ends, then runs
// the hooks.
func (h *Handler) Wait(ctx context.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, h.config.Signals...)
	defer stop()

	select {
	case <-sigCtx.Done():
	case <-h.done:
		return nil
	}
	return h.Shutdown()
}

// Shutdown runs the hooks at most once. Priorities run in ascending order;
// hooks sharing a priority run concurrently. A failed hook does not stop
// later ones, but an expired timeout does.
func (h *Handler) Shutdown() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrAlreadyClosed
	}
	h.closed = true
	close(h.done)
	hooks := slices.Clone(h.hooks)
	h.mu.Unlock()

	logger := h.config.Logger
	logger.Info("shutting down", logging.Int("hooks", len(hooks)))

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var (
		mu   sync.Mutex
		errs []error
	)
	for _, stage := range stages(hooks) {
		var g errgroup.Group
		for _, hook := range stage {
			g.Go(func() error {
				start := time.Now()
				if err := hook.Fn(ctx); err != nil {
					logger.Error("shutdown hook failed", logging.String("hook", hook.Name), logging.Err(err))
					mu.Lock()
					errs = append(errs, fmt.Errorf("%s: %w", hook.Name, err))
					mu.Unlock()
					return nil
				}
				logger.Debug("shutdown hook done",
					logging.String("hook", hook.Name),
					logging.Duration("duration", time.Since(start)),
				)
				return nil
			})
		}
		_ = g.Wait()

		if ctx.Err() != nil {
			return errors.Join(append(errs, ErrShutdownTimeout)...)
		}
	}
	return errors.Join(errs...)
}

// stages groups hooks by priority, lowest first, keeping registration order
// inside a group.
func stages(hooks []Hook) [][]Hook {
	slices.SortStableFunc(hooks, func(a, b Hook) int { return cmp.Compare(a.Priority, b.Priority) })

	var out [][]Hook
	for i, hook := range hooks {
		if i == 0 || hook.Priority != hooks[i-1].Priority {
			out = append(out, nil)
		}
		out[len(out)-1] = append(out[len(out)-1], hook)
	}
	return out
}

// Done is closed once shutdown starts.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// CloseableHook creates a hook for anything with a Close method.
func CloseableHook(name string, priority int, closer interface{ Close() error }) Hook {
	return Hook{
		Name:     name,
		Priority: priority,
		Fn: func(context.Context) error {
			return closer.Close()
		},
	}
}
