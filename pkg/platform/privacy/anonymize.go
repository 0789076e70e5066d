// Package privacy keeps client identifiers and secrets out of logs in recognizable form.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"net/netip"
)

// AnonymizeIP masks an address to its network: IPv4 to /24 ("192.168.1.47" -> "192.168.1.0"),
// IPv6 to /48 ("2001:db8:85a3::8a2e:370:7334" -> "2001:db8:85a3::").
// Returns "unknown" for empty input and "invalid" for unparseable input.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap()

	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}

// HashForLog returns a short stable SHA-256 prefix so a secret can be correlated across
// log lines without being recoverable. Empty input stays empty.
func HashForLog(secret string) string {
	if secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:6])
}
