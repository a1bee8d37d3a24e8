package blobstore

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidURLToken is returned when a signed URL token fails
	// verification.
	ErrInvalidURLToken = errors.New("invalid url token")
	// ErrExpiredURLToken is returned when a signed URL token has expired.
	ErrExpiredURLToken = errors.New("url token has expired")
)

// Operation names embedded in signed URL tokens. A token signed for one
// operation never authorizes the other.
const (
	OpUpload   = "upload"
	OpDownload = "download"
)

// urlClaims binds a token to one storage path and one operation.
type urlClaims struct {
	Path string `json:"path"`
	Op   string `json:"op"`
	jwt.RegisteredClaims
}

// URLSigner mints and verifies time-boxed signed URLs for raw object reads
// and writes. Expiry is enforced here, at the storage boundary.
type URLSigner struct {
	secret  []byte
	baseURL string
}

// NewURLSigner creates a URLSigner. baseURL is the externally reachable
// address of this service, without a trailing slash.
func NewURLSigner(secret, baseURL string) *URLSigner {
	return &URLSigner{
		secret:  []byte(secret),
		baseURL: baseURL,
	}
}

// Sign mints a signed URL authorizing op on path for ttl.
func (s *URLSigner) Sign(op, path string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := urlClaims{
		Path: path,
		Op:   op,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign url token: %w", err)
	}

	signed := fmt.Sprintf("%s/blob/%s?token=%s", s.baseURL, op, url.QueryEscape(token))
	return signed, expiresAt, nil
}

// Verify checks a token and returns the storage path it authorizes for op.
func (s *URLSigner) Verify(op, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &urlClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidURLToken
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredURLToken
		}
		return "", ErrInvalidURLToken
	}

	claims, ok := token.Claims.(*urlClaims)
	if !ok || !token.Valid || claims.Op != op || claims.Path == "" {
		return "", ErrInvalidURLToken
	}
	return claims.Path, nil
}
