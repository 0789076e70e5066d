package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gatekeeper/internal/lockout/models"
	"gatekeeper/pkg/requestcontext"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	cfg   models.Config
	start time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = New(WithIdleTTL(24 * time.Hour))
	s.cfg = models.DefaultConfig()
	s.start = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) at(d time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.start.Add(d))
}

func (s *InMemoryStoreSuite) lock(key string) {
	for range s.cfg.MaxAttempts {
		_, err := s.store.RecordFailure(s.at(0), key, s.cfg)
		s.Require().NoError(err)
	}
}

func (s *InMemoryStoreSuite) TestRecordFailure() {
	s.Run("counts per key", func() {
		r, err := s.store.RecordFailure(s.at(0), "a:1", s.cfg)
		s.Require().NoError(err)
		s.Equal(1, r.Attempts)
		s.Equal("a:1", r.Key)

		r, err = s.store.RecordFailure(s.at(time.Second), "a:1", s.cfg)
		s.Require().NoError(err)
		s.Equal(2, r.Attempts)
		s.Equal(s.start.Add(time.Second), r.LastFailureAt)

		r, err = s.store.RecordFailure(s.at(0), "a:2", s.cfg)
		s.Require().NoError(err)
		s.Equal(1, r.Attempts)
	})

	s.Run("expired lock restarts at one", func() {
		s.lock("b:1")
		r, err := s.store.RecordFailure(s.at(16*time.Minute), "b:1", s.cfg)
		s.Require().NoError(err)
		s.Equal(1, r.Attempts)
		s.Nil(r.LockedUntil)
	})
}

func (s *InMemoryStoreSuite) TestGetActive() {
	s.lock("c:1")

	r, ok, err := s.store.GetActive(s.at(14*time.Minute), "c:1")
	s.Require().NoError(err)
	s.True(ok)
	s.True(r.IsLockedAt(s.start.Add(14 * time.Minute)))

	_, ok, err = s.store.GetActive(s.at(15*time.Minute), "c:1")
	s.Require().NoError(err)
	s.False(ok)

	s.Zero(s.store.Len(), "expired lock is deleted on read")
}

func (s *InMemoryStoreSuite) TestDelete() {
	_, _ = s.store.RecordFailure(s.at(0), "d:1", s.cfg)
	existed, err := s.store.Delete(s.at(0), "d:1")
	s.Require().NoError(err)
	s.True(existed)

	existed, err = s.store.Delete(s.at(0), "d:1")
	s.Require().NoError(err)
	s.False(existed)
}

func (s *InMemoryStoreSuite) TestSweep() {
	s.lock("locked-expired")
	_, _ = s.store.RecordFailure(s.at(0), "idle", s.cfg)
	_, _ = s.store.RecordFailure(s.at(20*time.Hour), "recent", s.cfg)

	removed, err := s.store.Sweep(s.at(24 * time.Hour))
	s.Require().NoError(err)
	s.Equal(2, removed)
	s.Equal(1, s.store.Len())

	_, ok, _ := s.store.GetActive(s.at(24*time.Hour), "recent")
	s.True(ok)
}

func (s *InMemoryStoreSuite) TestSweepWithoutIdleTTLKeepsUnlocked() {
	st := New()
	_, _ = st.RecordFailure(s.at(0), "idle", s.cfg)
	removed, err := st.Sweep(s.at(365 * 24 * time.Hour))
	s.Require().NoError(err)
	s.Zero(removed)
}

func (s *InMemoryStoreSuite) TestConcurrentFailuresAreNotLost() {
	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			_, _ = s.store.RecordFailure(s.at(0), "hot", s.cfg)
		})
	}
	wg.Wait()

	r, ok, err := s.store.GetActive(s.at(0), "hot")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(100, r.Attempts)
}
