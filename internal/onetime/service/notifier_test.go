package service_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"gatekeeper/internal/onetime/metrics"
	"gatekeeper/internal/onetime/mocks"
	"gatekeeper/internal/onetime/models"
	"gatekeeper/internal/onetime/service"
	dErrors "gatekeeper/pkg/domain-errors"
	"gatekeeper/pkg/platform/audit"
	"gatekeeper/pkg/requestcontext"
)

// NotifierSuite tests issuance followed by delivery.
//
// Justification: a failed delivery must never surface to the client, otherwise
// the response reveals whether an account exists.
type NotifierSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	sender   *mocks.MockSender
	issuer   *service.Issuer
	metrics  *metrics.Metrics
	logs     *bytes.Buffer
	notifier *service.Notifier
	ctx      context.Context
}

func TestNotifierSuite(t *testing.T) {
	suite.Run(t, new(NotifierSuite))
}

func (s *NotifierSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.sender = mocks.NewMockSender(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.logs = &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(s.logs, nil))
	s.issuer = service.NewPasswordReset(service.WithLogger(logger))
	s.notifier = service.NewNotifier(s.issuer, s.sender,
		service.WithNotifierLogger(logger),
		service.WithNotifierAudit(audit.NewLogger(logger, nil)),
		service.WithNotifierMetrics(s.metrics),
	)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))
}

func (s *NotifierSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *NotifierSuite) TestSendsIssuedCredential() {
	var sent models.Message
	s.sender.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msg models.Message) error {
			sent = msg
			return nil
		})

	cred, err := s.notifier.CreateAndSend(s.ctx, "user-1", "Jane.Doe@Example.com", "")
	s.Require().NoError(err)

	s.Equal(models.PurposePasswordReset, sent.Purpose)
	s.Equal("jane.doe@example.com", sent.To)
	s.Equal("Jane", sent.Name)
	s.Equal(cred.Code, sent.Code)
	s.Equal(cred.Token, sent.Token)

	_, err = s.issuer.VerifyToken(s.ctx, cred.Token)
	s.NoError(err)
}

func (s *NotifierSuite) TestSendFailureIsSwallowed() {
	s.sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("smtp down"))

	cred, err := s.notifier.CreateAndSend(s.ctx, "user-1", "jane@example.com", "Jane")
	s.Require().NoError(err)
	s.NotNil(cred)

	s.Contains(s.logs.String(), "failed to send one-time credential")
	s.Contains(s.logs.String(), string(audit.EventNotificationFailed))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.NotificationFailures.WithLabelValues("password_reset")))

	_, err = s.issuer.VerifyToken(s.ctx, cred.Token)
	s.NoError(err, "credential stays valid even when delivery failed")
}

func (s *NotifierSuite) TestIssueFailureIsReturnedAndNothingIsSent() {
	cred, err := s.notifier.CreateAndSend(s.ctx, "user-1", "bad-email", "Jane")
	s.Nil(cred)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *NotifierSuite) TestNilSender() {
	n := service.NewNotifier(s.issuer, nil)
	cred, err := n.CreateAndSend(s.ctx, "user-1", "jane@example.com", "")
	s.Require().NoError(err)
	s.NotEmpty(cred.Token)
}
