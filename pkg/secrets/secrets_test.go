package secrets

import (
	"errors"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "gatekeeper/pkg/domain-errors"
)

var hexPattern = regexp.MustCompile(`^[0-9a-f]+$`)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestHexToken(t *testing.T) {
	t.Run("length and alphabet", func(t *testing.T) {
		tok, err := HexToken(TokenBytes)
		require.NoError(t, err)
		assert.Len(t, tok, 64)
		assert.Regexp(t, hexPattern, tok)
	})

	t.Run("tokens differ", func(t *testing.T) {
		a, err := HexToken(SessionIDBytes)
		require.NoError(t, err)
		b, err := HexToken(SessionIDBytes)
		require.NoError(t, err)
		assert.Len(t, a, 32)
		assert.NotEqual(t, a, b)
	})

	t.Run("entropy failure is internal", func(t *testing.T) {
		orig := Reader
		Reader = failingReader{}
		defer func() { Reader = orig }()

		_, err := HexToken(TokenBytes)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func TestNumericCode(t *testing.T) {
	t.Run("six digits in range", func(t *testing.T) {
		for range 500 {
			code, err := NumericCode(6)
			require.NoError(t, err)
			require.Len(t, code, 6)
			n, err := strconv.Atoi(code)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, n, 100000)
			assert.LessOrEqual(t, n, 999999)
		}
	})

	t.Run("rejects bad length", func(t *testing.T) {
		_, err := NumericCode(0)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestSHA256Hex(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", SHA256Hex(""))
	assert.Len(t, SHA256Hex("token"), 64)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("abc", "abc"))
	assert.False(t, Equal("abc", "abd"))
	assert.False(t, Equal("abc", "abcd"))
	assert.False(t, Equal("", "a"))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("Str0ng!pass")
	require.NoError(t, err)
	assert.NotEqual(t, "Str0ng!pass", hash)

	ok, err := CheckPassword("Str0ng!pass", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	t.Run("empty password rejected", func(t *testing.T) {
		_, err := HashPassword("")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("malformed hash is internal", func(t *testing.T) {
		_, err := CheckPassword("x", "not-a-hash")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})
}
