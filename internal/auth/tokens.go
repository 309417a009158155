package auth

import (
	"encoding/json/v2"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"

	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/id"
)

const (
	tokenIssuer   = "catalog-server"
	tokenAudience = "catalog-client"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

// Token types.
const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Claims are the contents of a verified token.
type Claims struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Type       TokenType `json:"token_type"`
	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// TokenPair is what login, register and refresh hand back to clients.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TokenService issues and verifies PASETO v4.local tokens. Both token types
// are encrypted with the same key and told apart by their token_type claim.
type TokenService struct {
	key             paseto.V4SymmetricKey
	accessDuration  time.Duration
	refreshDuration time.Duration
	now             func() time.Time
}

// NewTokenService creates a token service from a 32-byte key.
func NewTokenService(key []byte, accessDuration, refreshDuration time.Duration) (*TokenService, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("PASETO v4 key must be exactly %d bytes, got %d", KeySize, len(key))
	}
	k, err := paseto.V4SymmetricKeyFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}
	return &TokenService{
		key:             k,
		accessDuration:  accessDuration,
		refreshDuration: refreshDuration,
		now:             time.Now,
	}, nil
}

// Issue creates an access and refresh token for the user.
func (s *TokenService) Issue(userID, username string) (*TokenPair, error) {
	now := s.now()
	access, err := s.sign(userID, username, TokenAccess, now, s.accessDuration)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(userID, username, TokenRefresh, now, s.refreshDuration)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresAt:    now.Add(s.accessDuration),
	}, nil
}

func (s *TokenService) sign(userID, username string, typ TokenType, now time.Time, ttl time.Duration) (string, error) {
	tokenID, err := id.Generate("token")
	if err != nil {
		return "", fmt.Errorf("generate token ID: %w", err)
	}

	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetSubject(userID)
	token.SetAudience(tokenAudience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(ttl))
	token.SetJti(tokenID)
	token.SetString("user_id", userID)
	token.SetString("username", username)
	token.SetString("token_type", string(typ))

	return token.V4Encrypt(s.key, nil), nil
}

// VerifyAccess checks an access token. Expired tokens yield TOKEN_EXPIRED,
// anything else unusable yields UNAUTHORIZED.
func (s *TokenService) VerifyAccess(token string) (*Claims, error) {
	return s.verify(token, TokenAccess)
}

// VerifyRefresh checks a refresh token.
func (s *TokenService) VerifyRefresh(token string) (*Claims, error) {
	return s.verify(token, TokenRefresh)
}

func (s *TokenService) verify(token string, want TokenType) (*Claims, error) {
	// Expiry is checked below so it can be reported separately.
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))

	parsed, err := parser.ParseV4Local(s.key, token, nil)
	if err != nil {
		return nil, domainerrors.Unauthorized("invalid token").WithCause(err)
	}

	var claims Claims
	if err := json.Unmarshal(parsed.ClaimsJSON(), &claims); err != nil {
		return nil, domainerrors.Unauthorized("invalid token").WithCause(err)
	}
	if claims.Type != want {
		return nil, domainerrors.Unauthorized(fmt.Sprintf("only %s tokens are accepted here", want))
	}
	if !s.now().Before(claims.Expiration) {
		return nil, domainerrors.TokenExpired(fmt.Sprintf("%s token has expired", want))
	}
	return &claims, nil
}

// AccessTokenDuration returns the configured access token lifetime.
func (s *TokenService) AccessTokenDuration() time.Duration {
	return s.accessDuration
}
