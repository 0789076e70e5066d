package audit_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"gatekeeper/pkg/platform/audit"
	"gatekeeper/pkg/platform/audit/mocks"
	"gatekeeper/pkg/requestcontext"
)

// LoggerSuite tests the audit Logger helper.
//
// Justification: The Logger has conditional enrichment (request_id from context)
// and a swallow-on-failure path that feature tests cannot observe.
type LoggerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	emitter *mocks.MockEmitter
	logs    *bytes.Buffer
	logger  *audit.Logger
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerSuite))
}

func (s *LoggerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.emitter = mocks.NewMockEmitter(s.ctrl)
	s.logs = &bytes.Buffer{}
	s.logger = audit.NewLogger(slog.New(slog.NewTextHandler(s.logs, nil)), s.emitter)
}

func (s *LoggerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *LoggerSuite) TestLogEnrichesEvent() {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithRequestID(context.Background(), "req-12345")
	ctx = requestcontext.WithTime(ctx, now)

	s.emitter.EXPECT().Emit(gomock.Any(), audit.Event{
		Timestamp: now,
		Type:      audit.EventRateLimited,
		Subject:   "auth:1.2.3.4:a@b.com",
		ClientIP:  "1.2.3.0",
		Reason:    "auth",
		RequestID: "req-12345",
	}).Return(nil)

	s.logger.Log(ctx, audit.EventRateLimited,
		"subject", "auth:1.2.3.4:a@b.com",
		"client_ip", "1.2.3.0",
		"reason", "auth",
	)

	s.Contains(s.logs.String(), "log_type=audit")
	s.Contains(s.logs.String(), "request_id=req-12345")
}

func (s *LoggerSuite) TestEmitFailureIsSwallowed() {
	s.emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("sink down"))

	s.NotPanics(func() {
		s.logger.Log(context.Background(), audit.EventCSRFRejected, "reason", "CSRF token missing")
	})
	s.Contains(s.logs.String(), "failed to emit audit event")
}

func (s *LoggerSuite) TestNilSafety() {
	s.Run("nil logger is a no-op", func() {
		var l *audit.Logger
		s.NotPanics(func() { l.Log(context.Background(), audit.EventLoginFailed) })
	})

	s.Run("no emitter only writes text", func() {
		var buf bytes.Buffer
		l := audit.NewLogger(slog.New(slog.NewTextHandler(&buf, nil)), nil)
		l.Log(context.Background(), audit.EventAccountLocked, "subject", "a@b.com")
		s.Contains(buf.String(), "account_locked")
	})
}
