package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
)

// TokenConfig holds token issuance configuration.
type TokenConfig struct {
	SecretKey            string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
	Issuer               string
}

// DefaultTokenConfig returns a default token configuration. In production
// the secret key is loaded from the environment.
func DefaultTokenConfig() TokenConfig {
	return TokenConfig{
		SecretKey:            "dev-token-secret-change-in-production",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 7 * 24 * time.Hour,
		Issuer:               "asset-vault",
	}
}

// principalClaims are the custom claims carried by issued tokens.
type principalClaims struct {
	PrincipalID string `json:"principal_id"`
	Email       string `json:"email"`
	TokenType   string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies principal tokens.
type TokenManager struct {
	config TokenConfig
}

// NewTokenManager creates a TokenManager with the given configuration.
func NewTokenManager(config TokenConfig) *TokenManager {
	return &TokenManager{config: config}
}

// GenerateAccessToken issues a new access token for the principal.
func (m *TokenManager) GenerateAccessToken(principalID, email string) (string, error) {
	return m.generate(principalID, email, "access", m.config.AccessTokenDuration)
}

// GenerateRefreshToken issues a new refresh token for the principal.
func (m *TokenManager) GenerateRefreshToken(principalID, email string) (string, error) {
	return m.generate(principalID, email, "refresh", m.config.RefreshTokenDuration)
}

func (m *TokenManager) generate(principalID, email, tokenType string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := principalClaims{
		PrincipalID: principalID,
		Email:       email,
		TokenType:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   principalID,
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.SecretKey))
}

// verify validates a token string and returns its claims.
func (m *TokenManager) verify(tokenString string) (*principalClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &principalClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.config.SecretKey), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*principalClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyAccessToken validates an access token.
func (m *TokenManager) VerifyAccessToken(tokenString string) (*principalClaims, error) {
	claims, err := m.verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "access" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefreshToken validates a refresh token.
func (m *TokenManager) VerifyRefreshToken(tokenString string) (*principalClaims, error) {
	claims, err := m.verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "refresh" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// AccessTokenDuration returns the access token duration in seconds.
func (m *TokenManager) AccessTokenDuration() int64 {
	return int64(m.config.AccessTokenDuration.Seconds())
}
