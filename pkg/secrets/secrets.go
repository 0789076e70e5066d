package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/bcrypt"

	dErrors "gatekeeper/pkg/domain-errors"
)

// TokenBytes is the entropy of opaque tokens and CSRF tokens.
const TokenBytes = 32

// SessionIDBytes is the entropy of CSRF session identifiers.
const SessionIDBytes = 16

// Reader is the entropy source. Tests may swap it to simulate failures.
var Reader io.Reader = rand.Reader

// HexToken returns n random bytes hex-encoded (2n characters).
func HexToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(Reader, buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate token")
	}
	return hex.EncodeToString(buf), nil
}

// NumericCode returns a uniformly random code of exactly digits decimal digits with no
// leading zero, e.g. 100000-999999 for six digits.
func NumericCode(digits int) (string, error) {
	if digits < 1 || digits > 18 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "code length out of range")
	}
	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits-1)), nil)
	span := new(big.Int).Mul(low, big.NewInt(9))
	if digits == 1 {
		low, span = big.NewInt(0), big.NewInt(10)
	}
	n, err := rand.Int(Reader, span)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate code")
	}
	return fmt.Sprintf("%0*d", digits, n.Add(n, low)), nil
}

// SHA256Hex is the one-way digest stores index secrets by.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Equal compares two secrets in constant time with respect to their content.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// HashPassword creates a bcrypt hash of password at the default cost.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "password is too long")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not hash password")
	}
	return string(hashed), nil
}

// CheckPassword reports whether password matches a bcrypt hash. A malformed hash is an error.
func CheckPassword(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "could not verify password")
	}
}
