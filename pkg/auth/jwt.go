package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the subject (user id) and the token kind.
type Claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

func (c *Claims) IsAccess() bool  { return c.Type == TokenTypeAccess }
func (c *Claims) IsRefresh() bool { return c.Type == TokenTypeRefresh }

type JWTManager struct {
	secretKey     []byte
	method        jwt.SigningMethod
	tokenDuration time.Duration
	refreshExp    time.Duration
	now           func() time.Time
}

// NewJWTManager returns a manager signing with the named HMAC algorithm (HS256 when unknown).
func NewJWTManager(secretKey, algorithm string, tokenDuration, refreshExp time.Duration) *JWTManager {
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		method = jwt.SigningMethodHS256
	}
	return &JWTManager{
		secretKey:     []byte(secretKey),
		method:        method,
		tokenDuration: tokenDuration,
		refreshExp:    refreshExp,
		now:           time.Now,
	}
}

func (m *JWTManager) GenerateAccessToken(subject string) (string, error) {
	return m.generate(subject, TokenTypeAccess, m.tokenDuration)
}

func (m *JWTManager) GenerateRefreshToken(subject string) (string, error) {
	return m.generate(subject, TokenTypeRefresh, m.refreshExp)
}

func (m *JWTManager) generate(subject, tokenType string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := &Claims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// ValidateToken checks signature, algorithm and expiry. It does not check the token type.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secretKey, nil
	},
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
