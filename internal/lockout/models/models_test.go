package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFailure(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	var r Record

	for i := 1; i < cfg.MaxAttempts; i++ {
		r.RegisterFailure(now, cfg)
		assert.Nil(t, r.LockedUntil, "attempt %d must not lock", i)
		assert.Equal(t, cfg.MaxAttempts-i, r.Remaining(cfg))
	}

	r.RegisterFailure(now, cfg)
	require.NotNil(t, r.LockedUntil)
	assert.Equal(t, now.Add(15*time.Minute), *r.LockedUntil)
	assert.Equal(t, 0, r.Remaining(cfg))
	assert.True(t, r.IsLockedAt(now.Add(15*time.Minute-time.Second)))
	assert.False(t, r.IsLockedAt(now.Add(15*time.Minute)))
	assert.True(t, r.LockExpiredAt(now.Add(15*time.Minute)))

	later := now.Add(5 * time.Minute)
	r.RegisterFailure(later, cfg)
	assert.Equal(t, later.Add(15*time.Minute), *r.LockedUntil)
	assert.Equal(t, 0, r.Remaining(cfg))
}

func TestNewKey(t *testing.T) {
	assert.Equal(t, "alice@example.com:1.2.3.4", NewKey(" Alice@Example.com ", "1.2.3.4"))
	assert.Equal(t, "alice@example.com:2001_cdb8_c_c1", NewKey("alice@example.com", "2001:db8::1"))
	assert.NotEqual(t, NewKey("a:b", "c"), NewKey("a", "b:c"))
}
