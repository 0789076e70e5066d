package tracer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"gatekeeper/pkg/platform/tracer"
)

func newRecordedTracer(t *testing.T, ratio float64) (*tracer.OTelTracer, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider, err := tracer.NewProvider(context.Background(), tracer.ProviderConfig{
		ServiceName: "gatekeeper-test",
		SampleRatio: ratio,
		Options:     []sdktrace.TracerProviderOption{sdktrace.WithSpanProcessor(recorder)},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return tracer.NewOTel(tracer.WithOTelTracer(provider.Tracer(tracer.InstrumentationName))), recorder
}

func TestNewProviderRecordsSpans(t *testing.T) {
	tr, recorder := newRecordedTracer(t, 1)

	_, span := tr.Start(context.Background(), tracer.SpanCSRFValidate, tracer.String(tracer.AttrReason, "invalid"))
	span.AddEvent("compared")
	span.End(errors.New("Invalid CSRF token"))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	got := ended[0]
	assert.Equal(t, tracer.SpanCSRFValidate, got.Name())
	assert.Equal(t, codes.Error, got.Status().Code)
	assert.Equal(t, "Invalid CSRF token", got.Status().Description)
	require.NotEmpty(t, got.Attributes())
	assert.Equal(t, tracer.AttrReason, string(got.Attributes()[0].Key))
	assert.Equal(t, "gatekeeper-test", resourceValue(got, "service.name"))
}

func TestNewProviderHonorsZeroRatio(t *testing.T) {
	tr, recorder := newRecordedTracer(t, 0)

	_, span := tr.Start(context.Background(), tracer.SpanRateLimitAllow)
	span.End(nil)

	assert.Empty(t, recorder.Ended())
}

func resourceValue(span sdktrace.ReadOnlySpan, key string) string {
	for _, kv := range span.Resource().Attributes() {
		if string(kv.Key) == key {
			return kv.Value.AsString()
		}
	}
	return ""
}
