package tokenstore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gatekeeper/pkg/requestcontext"
	"gatekeeper/pkg/testutil"
)

type record struct {
	email string
	code  string
}

type StoreSuite struct {
	suite.Suite
	store *Store[string, record]
	now   time.Time
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.store = New[string, record]()
	s.now = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) at(d time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(d))
}

// =============================================================================
// Read-time expiry
// =============================================================================

func (s *StoreSuite) TestGetHonoursDeadline() {
	s.store.Put(s.at(0), "h1", record{email: "a@b.com"}, time.Hour)

	s.Run("live before deadline", func() {
		v, ok := s.store.Get(s.at(59*time.Minute), "h1")
		s.True(ok)
		s.Equal("a@b.com", v.email)
	})

	s.Run("expired exactly at deadline and removed", func() {
		_, l := s.store.Lookup(s.at(time.Hour), "h1")
		s.Equal(Expired, l)
		s.Equal(0, s.store.Len())
		_, l = s.store.Lookup(s.at(time.Hour), "h1")
		s.Equal(Absent, l)
	})
}

func (s *StoreSuite) TestPutReplaces() {
	s.store.Put(s.at(0), "k", record{code: "111111"}, time.Minute)
	s.store.Put(s.at(0), "k", record{code: "222222"}, time.Hour)

	v, ok := s.store.Get(s.at(30*time.Minute), "k")
	s.True(ok)
	s.Equal("222222", v.code)
}

func (s *StoreSuite) TestFind() {
	byEmail := func(email, code string) func(string, record) bool {
		return func(_ string, r record) bool { return r.email == email && r.code == code }
	}

	s.Run("absent when nothing matches", func() {
		s.store.Put(s.at(0), "h1", record{email: "a@b.com", code: "123456"}, time.Hour)
		_, _, l := s.store.Find(s.at(0), byEmail("c@d.com", "123456"), false)
		s.Equal(Absent, l)
	})

	s.Run("found without consuming", func() {
		k, v, l := s.store.Find(s.at(0), byEmail("a@b.com", "123456"), false)
		s.Equal(Found, l)
		s.Equal("h1", k)
		s.Equal("a@b.com", v.email)
		s.Equal(1, s.store.Len())
	})

	s.Run("consume removes the match", func() {
		_, _, l := s.store.Find(s.at(0), byEmail("a@b.com", "123456"), true)
		s.Equal(Found, l)
		s.Equal(0, s.store.Len())
	})

	s.Run("expired match reported and removed", func() {
		s.store.Put(s.at(0), "h2", record{email: "a@b.com", code: "654321"}, time.Minute)
		_, _, l := s.store.Find(s.at(time.Hour), byEmail("a@b.com", "654321"), true)
		s.Equal(Expired, l)
		s.Equal(0, s.store.Len())
	})

	s.Run("live match preferred over expired", func() {
		s.store.Put(s.at(0), "stale", record{email: "x@y.com", code: "1"}, time.Minute)
		s.store.Put(s.at(0), "fresh", record{email: "x@y.com", code: "1"}, 2*time.Hour)
		k, _, l := s.store.Find(s.at(time.Hour), byEmail("x@y.com", "1"), false)
		s.Equal(Found, l)
		s.Equal("fresh", k)
	})
}

func (s *StoreSuite) TestDeleteFunc() {
	s.store.Put(s.at(0), "h1", record{email: "a@b.com"}, time.Hour)
	s.store.Put(s.at(0), "h2", record{email: "a@b.com"}, time.Minute)
	s.store.Put(s.at(0), "h3", record{email: "c@d.com"}, time.Hour)

	n := s.store.DeleteFunc(s.at(0), func(_ string, r record) bool { return r.email == "a@b.com" })

	s.Equal(2, n)
	s.Equal(1, s.store.Len())
	s.True(s.store.Delete(s.at(0), "h3"))
	s.False(s.store.Delete(s.at(0), "h3"))
}

func (s *StoreSuite) TestReplace() {
	s.store.Put(s.at(0), "h1", record{email: "a@b.com", code: "111111"}, time.Hour)
	s.store.Put(s.at(0), "h2", record{email: "c@d.com", code: "222222"}, time.Hour)

	n := s.store.Replace(s.at(0), "h3", record{email: "a@b.com", code: "333333"}, time.Hour,
		func(_ string, r record) bool { return r.email == "a@b.com" })

	s.Equal(1, n)
	s.Equal(2, s.store.Len())
	_, ok := s.store.Get(s.at(0), "h1")
	s.False(ok)
	v, ok := s.store.Get(s.at(0), "h3")
	s.True(ok)
	s.Equal("333333", v.code)
}

func (s *StoreSuite) TestReplaceLeavesOneUnderContention() {
	testutil.RunConcurrent(50, func(i int) error {
		s.store.Replace(s.at(0), strings.Repeat("x", i+1), record{email: "a@b.com"}, time.Hour,
			func(_ string, r record) bool { return r.email == "a@b.com" })
		return nil
	})
	s.Equal(1, s.store.Len())
}

// =============================================================================
// Sweep
// =============================================================================

func (s *StoreSuite) TestSweep() {
	for i, ttl := range []time.Duration{time.Minute, time.Hour, 2 * time.Minute} {
		s.store.Put(s.at(0), strings.Repeat("k", i+1), record{}, ttl)
	}

	s.Equal(2, s.store.Sweep(s.at(30*time.Minute)))
	s.Equal(1, s.store.Len())
	_, ok := s.store.Get(s.at(30*time.Minute), "kk")
	s.True(ok)
}

func (s *StoreSuite) TestLookupString() {
	s.Equal("found", Found.String())
	s.Equal("expired", Expired.String())
	s.Equal("absent", Absent.String())
}
