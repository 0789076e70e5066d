package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))

	ctx = WithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", RequestID(ctx))
}

func TestNow(t *testing.T) {
	t.Run("falls back to wall clock", func(t *testing.T) {
		before := time.Now()
		got := Now(context.Background())
		assert.False(t, got.Before(before))
	})

	t.Run("returns injected time", func(t *testing.T) {
		fixed := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
		assert.Equal(t, fixed, Now(WithTime(context.Background(), fixed)))
	})
}

func TestClientMetadata(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ClientMetadata{}, Client(ctx))
	assert.Empty(t, ClientIP(ctx))

	md := ClientMetadata{
		IP:             "1.2.3.4",
		UserAgent:      "curl/8.0",
		AcceptLanguage: "en-US",
		AcceptEncoding: "gzip",
	}
	ctx = WithClientMetadata(ctx, md)
	assert.Equal(t, md, Client(ctx))
	assert.Equal(t, "1.2.3.4", ClientIP(ctx))
	assert.Equal(t, "curl/8.0", UserAgent(ctx))
}
