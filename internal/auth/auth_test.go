package auth

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	assert.True(t, VerifyPassword(hash, "correct horse battery staple"))
	assert.False(t, VerifyPassword(hash, "wrong"))
	assert.False(t, VerifyPassword("not-a-hash", "wrong"))
}

func TestHashPassword_SaltsDiffer(t *testing.T) {
	a, err := HashPassword("secret123")
	require.NoError(t, err)
	b, err := HashPassword("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashPassword_Limits(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)

	_, err = HashPassword(strings.Repeat("a", MaxPasswordLength+1))
	assert.Error(t, err)
}

func TestLoadOrGenerateKey(t *testing.T) {
	dir := t.TempDir()

	key, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Len(t, key, KeySize)

	again, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, key, again)

	info, err := os.Stat(filepath.Join(dir, KeyFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestParseKey(t *testing.T) {
	_, err := ParseKey("abc")
	assert.Error(t, err)

	_, err = ParseKey(strings.Repeat("zz", KeySize))
	assert.Error(t, err)

	key, err := ParseKey(" " + strings.Repeat("ab", KeySize) + "\n")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ab", KeySize), hex.EncodeToString(key))
}

func newTokenService(t *testing.T) *TokenService {
	t.Helper()
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	s, err := NewTokenService(key, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)
	return s
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	s := newTokenService(t)

	pair, err := s.Issue("user-1", "reader")
	require.NoError(t, err)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.True(t, strings.HasPrefix(pair.AccessToken, "v4.local."))

	claims, err := s.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "reader", claims.Username)
	assert.Equal(t, TokenAccess, claims.Type)
	assert.True(t, strings.HasPrefix(claims.TokenID, "token-"))

	refresh, err := s.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, TokenRefresh, refresh.Type)
}

func TestTokenService_WrongType(t *testing.T) {
	s := newTokenService(t)
	pair, err := s.Issue("user-1", "reader")
	require.NoError(t, err)

	_, err = s.VerifyAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	_, err = s.VerifyRefresh(pair.AccessToken)
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestTokenService_Expired(t *testing.T) {
	s := newTokenService(t)
	pair, err := s.Issue("user-1", "reader")
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = s.VerifyAccess(pair.AccessToken)
	assert.ErrorIs(t, err, domainerrors.ErrTokenExpired)

	// Refresh tokens outlive access tokens.
	_, err = s.VerifyRefresh(pair.RefreshToken)
	assert.NoError(t, err)
}

func TestTokenService_Tampered(t *testing.T) {
	s := newTokenService(t)
	_, err := s.VerifyAccess("v4.local.garbage")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	other, err := NewTokenService(make([]byte, KeySize), time.Minute, time.Hour)
	require.NoError(t, err)
	pair, err := other.Issue("user-1", "reader")
	require.NoError(t, err)
	_, err = s.VerifyAccess(pair.AccessToken)
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestNewTokenService_KeySize(t *testing.T) {
	_, err := NewTokenService([]byte("short"), time.Minute, time.Hour)
	assert.Error(t, err)
}
