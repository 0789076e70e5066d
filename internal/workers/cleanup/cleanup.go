// Package cleanup runs the background sweep of every expiring in-memory store.
//
// Sweeping only reclaims memory. Every store still checks expiry on read, so a delayed or
// failed sweep never lets an expired entry through.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gatekeeper/pkg/platform/tracer"
	"gatekeeper/pkg/requestcontext"
)

// DefaultInterval is the time between sweeps.
const DefaultInterval = time.Minute

// Sweeper drops expired entries and reports how many it removed.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Target is a named store to sweep.
type Target struct {
	Name    string
	Sweeper Sweeper
}

// Result contains the outcome of one sweep run.
type Result struct {
	Removed  map[string]int
	Duration time.Duration
}

// Total sums the entries removed across targets.
func (r *Result) Total() int {
	n := 0
	for _, v := range r.Removed {
		n += v
	}
	return n
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

type Service struct {
	targets  []Target
	logger   *slog.Logger
	interval time.Duration
	metrics  *Metrics
	tracer   tracer.Tracer

	mu      sync.Mutex
	lastErr error
}

func New(targets []Target, opts ...Option) *Service {
	s := &Service{
		targets:  targets,
		logger:   slog.Default(),
		interval: DefaultInterval,
		tracer:   tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start sweeps on every tick until ctx is cancelled. Failed runs are logged and retried on
// the next tick.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "store_cleanup_failed",
					"error", err,
					"removed", res.Total(),
					"duration_ms", res.Duration.Milliseconds(),
				)
				continue
			}
			s.logger.DebugContext(ctx, "store_cleanup_completed",
				"removed", res.Total(),
				"duration_ms", res.Duration.Milliseconds(),
			)

		case <-ctx.Done():
			s.logger.Info("store cleanup worker stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

// RunOnce sweeps every target once. A failing target does not stop the others; their errors
// are joined. The result is never nil.
func (s *Service) RunOnce(ctx context.Context) (res *Result, err error) {
	// One clock reading for the whole run, so every target sweeps against the same instant.
	ctx = requestcontext.WithTime(ctx, requestcontext.Now(ctx))
	ctx, span := s.tracer.Start(ctx, tracer.SpanCleanupSweep)
	started := time.Now()
	res = &Result{Removed: make(map[string]int, len(s.targets))}
	defer func() {
		res.Duration = time.Since(started)
		span.SetAttributes(tracer.Int64(tracer.AttrRemoved, int64(res.Total())))
		span.End(err)
		if s.metrics != nil {
			s.metrics.ObserveRun(res, err)
		}
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
	}()

	var errs []error
	for _, t := range s.targets {
		n, sweepErr := t.Sweeper.Sweep(ctx)
		if sweepErr != nil {
			errs = append(errs, fmt.Errorf("sweep %s: %w", t.Name, sweepErr))
			continue
		}
		res.Removed[t.Name] = n
	}
	return res, errors.Join(errs...)
}

// LastError returns the error of the most recent run, nil if it succeeded or none ran yet.
// It serves as a readiness check.
func (s *Service) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
