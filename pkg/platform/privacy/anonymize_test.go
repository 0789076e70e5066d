package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"ipv4 standard address", "192.168.1.47", "192.168.1.0"},
		{"ipv4 with last octet zero", "10.0.0.0", "10.0.0.0"},
		{"ipv4 localhost", "127.0.0.1", "127.0.0.0"},
		{"ipv4-mapped ipv6", "::ffff:203.0.113.9", "203.0.113.0"},
		{"ipv6 full address", "2001:db8:85a3:0000:0000:8a2e:0370:7334", "2001:db8:85a3::"},
		{"ipv6 compressed address", "2001:db8:85a3::8a2e:370:7334", "2001:db8:85a3::"},
		{"ipv6 loopback", "::1", "::"},
		{"empty", "", "unknown"},
		{"unknown marker", "unknown", "unknown"},
		{"garbage", "not-an-ip", "invalid"},
		{"ip with port is invalid", "1.2.3.4:80", "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AnonymizeIP(tt.input))
		})
	}
}

func TestHashForLog(t *testing.T) {
	t.Run("stable and short", func(t *testing.T) {
		h := HashForLog("a3f1c0ffee")
		assert.Len(t, h, 12)
		assert.Equal(t, h, HashForLog("a3f1c0ffee"))
		assert.NotEqual(t, h, HashForLog("a3f1c0fffe"))
	})

	t.Run("does not echo the secret", func(t *testing.T) {
		assert.NotContains(t, HashForLog("123456"), "123456")
	})

	t.Run("empty stays empty", func(t *testing.T) {
		assert.Empty(t, HashForLog(""))
	})
}
