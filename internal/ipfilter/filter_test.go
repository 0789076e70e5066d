package ipfilter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"gatekeeper/internal/ipfilter/models"
	"gatekeeper/internal/ipfilter/store"
	"gatekeeper/pkg/platform/audit"
	auditmocks "gatekeeper/pkg/platform/audit/mocks"
	"gatekeeper/pkg/requestcontext"
)

type FilterSuite struct {
	suite.Suite
	emitter *auditmocks.MockEmitter
	filter  *Filter
	ctx     context.Context
}

func TestFilterSuite(t *testing.T) {
	suite.Run(t, new(FilterSuite))
}

func (s *FilterSuite) SetupTest() {
	s.ctx = context.Background()
	s.emitter = auditmocks.NewMockEmitter(gomock.NewController(s.T()))
	s.filter = s.newFilter(prometheus.NewRegistry())
}

func (s *FilterSuite) newFilter(reg prometheus.Registerer) *Filter {
	f, err := New(store.New(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditLogger(audit.NewLogger(nil, s.emitter)),
		WithRegisterer(reg),
	)
	s.Require().NoError(err)
	return f
}

func (s *FilterSuite) load(list models.List, values ...string) {
	prefixes, err := models.ParsePrefixes(values)
	s.Require().NoError(err)
	s.Require().NoError(s.filter.Load(s.ctx, list, prefixes))
}

func (s *FilterSuite) TestNew() {
	_, err := New(nil)
	s.Error(err)
}

func (s *FilterSuite) TestEmptyListsAdmitEveryone() {
	for _, ip := range []string{"203.0.113.7", "2001:db8::1", "", "garbage"} {
		admitted, reason, err := s.filter.Admit(s.ctx, ip)
		s.Require().NoError(err)
		s.True(admitted, ip)
		s.Empty(reason)
	}
}

func (s *FilterSuite) TestDenyList() {
	s.load(models.ListDeny, "203.0.113.7", "198.51.100.0/24")

	s.Run("listed address is rejected and audited", func() {
		s.emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
			s.Equal(audit.EventAccessDenied, e.Type)
			s.Equal(ReasonDenied, e.Reason)
			return nil
		})
		admitted, reason, err := s.filter.Admit(s.ctx, "203.0.113.7")
		s.Require().NoError(err)
		s.False(admitted)
		s.Equal(ReasonDenied, reason)
	})

	s.Run("address inside a listed network is rejected", func() {
		s.emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
		admitted, _, err := s.filter.Admit(s.ctx, "198.51.100.42")
		s.Require().NoError(err)
		s.False(admitted)
	})

	s.Run("other addresses pass", func() {
		admitted, _, err := s.filter.Admit(s.ctx, "192.0.2.1")
		s.Require().NoError(err)
		s.True(admitted)
	})
}

func (s *FilterSuite) TestAllowList() {
	s.load(models.ListAllow, "10.0.0.0/8")

	s.Run("member is admitted", func() {
		admitted, _, err := s.filter.Admit(s.ctx, "10.20.30.40")
		s.Require().NoError(err)
		s.True(admitted)
	})

	s.Run("non-member is rejected", func() {
		s.emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
		admitted, reason, err := s.filter.Admit(s.ctx, "192.0.2.1")
		s.Require().NoError(err)
		s.False(admitted)
		s.Equal(ReasonNotAllowed, reason)
	})

	s.Run("unresolved address is rejected", func() {
		s.emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
		admitted, _, err := s.filter.Admit(s.ctx, "")
		s.Require().NoError(err)
		s.False(admitted)
	})
}

func (s *FilterSuite) TestDenyWinsOverAllow() {
	s.load(models.ListAllow, "10.0.0.0/8")
	s.load(models.ListDeny, "10.0.0.5")
	s.emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	admitted, reason, err := s.filter.Admit(s.ctx, "10.0.0.5")
	s.Require().NoError(err)
	s.False(admitted)
	s.Equal(ReasonDenied, reason)
}

func (s *FilterSuite) TestDeniedCounter() {
	reg := prometheus.NewRegistry()
	s.filter = s.newFilter(reg)
	s.load(models.ListDeny, "203.0.113.7")
	s.emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	for range 2 {
		_, _, err := s.filter.Admit(s.ctx, "203.0.113.7")
		s.Require().NoError(err)
	}
	s.Equal(2.0, promtest.ToFloat64(s.filter.denied.WithLabelValues(ReasonDenied)))
}

func (s *FilterSuite) TestMiddleware() {
	s.load(models.ListDeny, "203.0.113.7")
	s.load(models.ListAllow, "203.0.113.0/24")
	h := s.filter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(ip string) *httptest.ResponseRecorder {
		ctx := requestcontext.WithClientMetadata(context.Background(), requestcontext.ClientMetadata{IP: ip})
		req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	s.Run("allow-listed address passes", func() {
		s.Equal(http.StatusOK, serve("203.0.113.8").Code)
	})

	for name, ip := range map[string]string{"deny-listed": "203.0.113.7", "not allow-listed": "192.0.2.1"} {
		s.Run(name+" address gets 403", func() {
			s.emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
			rec := serve(ip)
			s.Equal(http.StatusForbidden, rec.Code)
			var body map[string]any
			s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
			s.Equal(false, body["success"])
			s.Equal(Message, body["message"])
		})
	}
}

type failingStore struct{}

func (failingStore) Add(context.Context, models.List, netip.Prefix) error { return nil }
func (failingStore) Contains(context.Context, models.List, netip.Addr) (bool, error) {
	return false, errors.New("store down")
}
func (failingStore) Count(context.Context, models.List) (int, error) { return 0, nil }

func (s *FilterSuite) TestMiddlewareFailsClosed() {
	f, err := New(failingStore{}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
	h := f.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}
