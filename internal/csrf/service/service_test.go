package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"gatekeeper/internal/csrf/metrics"
	dErrors "gatekeeper/pkg/domain-errors"
	"gatekeeper/pkg/platform/audit"
	"gatekeeper/pkg/requestcontext"
	"gatekeeper/pkg/secrets"
)

type ServiceSuite struct {
	suite.Suite
	svc     *Service
	metrics *metrics.Metrics
	logs    *bytes.Buffer
	start   time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.logs = &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(s.logs, nil))
	s.svc = New(
		WithLogger(logger),
		WithAuditLogger(audit.NewLogger(logger, nil)),
		WithMetrics(s.metrics),
	)
	s.start = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
}

func (s *ServiceSuite) at(d time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.start.Add(d))
}

func (s *ServiceSuite) TestIssue() {
	issued, err := s.svc.Issue(s.at(0))
	s.Require().NoError(err)
	s.Len(issued.SessionID, 32)
	s.Len(issued.Token, 64)
	s.NotContains(issued.Token, issued.SessionID)
	s.Equal(1, s.svc.Len())
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Issued))

	other, err := s.svc.Issue(s.at(0))
	s.Require().NoError(err)
	s.NotEqual(issued.SessionID, other.SessionID)
	s.NotEqual(issued.Token, other.Token)
}

func (s *ServiceSuite) TestIssueEntropyFailure() {
	orig := secrets.Reader
	secrets.Reader = strings.NewReader("")
	defer func() { secrets.Reader = orig }()

	_, err := s.svc.Issue(s.at(0))
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Zero(s.svc.Len())
}

func (s *ServiceSuite) TestValidate() {
	issued, err := s.svc.Issue(s.at(0))
	s.Require().NoError(err)

	s.Run("matching token is accepted", func() {
		s.NoError(s.svc.Validate(s.at(time.Minute), issued.SessionID, issued.Token))
	})

	s.Run("token stays valid for repeated use", func() {
		s.NoError(s.svc.Validate(s.at(2*time.Minute), issued.SessionID, issued.Token))
	})

	s.Run("missing token or session", func() {
		err := s.svc.Validate(s.at(0), issued.SessionID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeTokenMissing))
		s.Equal("CSRF token missing", err.Error())

		err = s.svc.Validate(s.at(0), "", issued.Token)
		s.True(dErrors.HasCode(err, dErrors.CodeTokenMissing))
	})

	s.Run("wrong token", func() {
		err := s.svc.Validate(s.at(0), issued.SessionID, strings.Repeat("0", 64))
		s.True(dErrors.HasCode(err, dErrors.CodeTokenInvalid))
		s.Equal("Invalid CSRF token", err.Error())
	})

	s.Run("token of another session", func() {
		other, err := s.svc.Issue(s.at(0))
		s.Require().NoError(err)
		err = s.svc.Validate(s.at(0), issued.SessionID, other.Token)
		s.True(dErrors.HasCode(err, dErrors.CodeTokenInvalid))
	})

	s.Run("unknown session", func() {
		err := s.svc.Validate(s.at(0), "deadbeef", issued.Token)
		s.True(dErrors.HasCode(err, dErrors.CodeTokenInvalid))
	})

	s.Run("expired after one hour", func() {
		err := s.svc.Validate(s.at(time.Hour), issued.SessionID, issued.Token)
		s.True(dErrors.HasCode(err, dErrors.CodeTokenInvalid))
	})

	s.Contains(s.logs.String(), string(audit.EventCSRFRejected))
	s.Equal(2.0, promtest.ToFloat64(s.metrics.Rejections.WithLabelValues(string(dErrors.CodeTokenMissing))))
}

func (s *ServiceSuite) TestCustomTTLAndSweep() {
	svc := New(WithTTL(10 * time.Minute))
	issued, err := svc.Issue(s.at(0))
	s.Require().NoError(err)
	_, err = svc.Issue(s.at(5 * time.Minute))
	s.Require().NoError(err)

	s.NoError(svc.Validate(s.at(9*time.Minute), issued.SessionID, issued.Token))

	removed, err := svc.Sweep(s.at(10 * time.Minute))
	s.Require().NoError(err)
	s.Equal(1, removed)
	s.Equal(1, svc.Len())
}

func (s *ServiceSuite) TestValidateReturnsDomainErrors() {
	err := s.svc.Validate(s.at(0), "x", "y")
	var domainErr *dErrors.Error
	s.True(errors.As(err, &domainErr))
}
