package cleanup

// Justification: the worker is the only thing that bounds memory for keys that are
// never read again. These tests pin that every target is swept against one clock
// reading and that one failing store does not starve the others.

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"gatekeeper/internal/tokenstore"
	"gatekeeper/pkg/requestcontext"
)

type stubSweeper struct {
	removed int
	err     error
	calls   atomic.Int32
	seen    time.Time
}

func (s *stubSweeper) Sweep(ctx context.Context) (int, error) {
	s.calls.Add(1)
	s.seen = requestcontext.Now(ctx)
	return s.removed, s.err
}

type tokenSweeper struct {
	store *tokenstore.Store[string, string]
}

func (t tokenSweeper) Sweep(ctx context.Context) (int, error) {
	return t.store.Sweep(ctx), nil
}

type CleanupSuite struct {
	suite.Suite
	a, b    *stubSweeper
	metrics *Metrics
	service *Service
}

func TestCleanupSuite(t *testing.T) {
	suite.Run(t, new(CleanupSuite))
}

func (s *CleanupSuite) SetupTest() {
	s.a = &stubSweeper{removed: 3}
	s.b = &stubSweeper{removed: 2}
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.service = New([]Target{{Name: "a", Sweeper: s.a}, {Name: "b", Sweeper: s.b}}, WithMetrics(s.metrics))
}

func (s *CleanupSuite) TestRunOnceSweepsEveryTarget() {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	res, err := s.service.RunOnce(requestcontext.WithTime(context.Background(), now))
	s.Require().NoError(err)

	s.Equal(map[string]int{"a": 3, "b": 2}, res.Removed)
	s.Equal(5, res.Total())
	s.Equal(now, s.a.seen)
	s.Equal(now, s.b.seen)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Runs.WithLabelValues("success")))
	s.Equal(3.0, promtest.ToFloat64(s.metrics.Removed.WithLabelValues("a")))
}

func (s *CleanupSuite) TestRunOnceContinuesPastFailure() {
	s.a.err = errors.New("boom")
	res, err := s.service.RunOnce(context.Background())

	s.ErrorContains(err, "sweep a: boom")
	s.Equal(int32(1), s.b.calls.Load())
	s.Equal(map[string]int{"b": 2}, res.Removed)
	s.Equal(s.a.seen, s.b.seen, "one clock reading per run")
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Runs.WithLabelValues("error")))
	s.Error(s.service.LastError())

	s.a.err = nil
	_, err = s.service.RunOnce(context.Background())
	s.NoError(err)
	s.NoError(s.service.LastError())
}

func (s *CleanupSuite) TestRunOnceWithRealStore() {
	store := tokenstore.New[string, string]()
	start := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	store.Put(requestcontext.WithTime(context.Background(), start), "old", "v", time.Minute)
	store.Put(requestcontext.WithTime(context.Background(), start), "new", "v", time.Hour)

	svc := New([]Target{{Name: "tokens", Sweeper: tokenSweeper{store: store}}})
	res, err := svc.RunOnce(requestcontext.WithTime(context.Background(), start.Add(time.Minute)))
	s.Require().NoError(err)
	s.Equal(1, res.Removed["tokens"])
	s.Equal(1, store.Len())
}

func (s *CleanupSuite) TestStartStopsOnCancel() {
	svc := New([]Target{{Name: "a", Sweeper: s.a}}, WithInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	s.Eventually(func() bool { return s.a.calls.Load() > 0 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(time.Second):
		s.Fail("worker did not stop")
	}
}
