package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const issuer = "cv-rag-platform"

var (
	ErrMissingSecret = errors.New("auth: signing secret is empty")
	ErrRevoked       = errors.New("auth: token has been revoked")
	ErrInvalidToken  = errors.New("auth: invalid token")
)

// Claims identify the calling service. Scope is a space separated list.
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and checks HMAC service tokens. When a Redis client
// is attached, revoked token ids are kept under revoked:<jti> until the
// token would have expired anyway.
type TokenManager struct {
	secret []byte
	rdb    *redis.Client
	now    func() time.Time
}

func NewTokenManager(secret string, rdb *redis.Client) (*TokenManager, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &TokenManager{secret: []byte(secret), rdb: rdb, now: time.Now}, nil
}

// ParseTTL reads durations such as "24h"; empty or invalid input yields def.
func ParseTTL(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Issue signs a token for subject. The returned jti can be passed to Revoke.
func (m *TokenManager) Issue(subject, scope string, ttl time.Duration) (string, string, error) {
	now := m.now()
	jti := uuid.NewString()
	claims := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign token: %w", err)
	}
	return signed, jti, nil
}

// Validate parses the token and rejects it if its jti was revoked. A Redis
// failure during the revocation lookup does not block the request.
func (m *TokenManager) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if m.rdb != nil && claims.ID != "" {
		n, err := m.rdb.Exists(ctx, revokedKey(claims.ID)).Result()
		if err == nil && n > 0 {
			return nil, ErrRevoked
		}
	}
	return claims, nil
}

// Revoke blacklists jti for ttl. It needs a Redis client.
func (m *TokenManager) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if m.rdb == nil {
		return errors.New("auth: revocation requires redis")
	}
	return m.rdb.Set(ctx, revokedKey(jti), "1", ttl).Err()
}

func revokedKey(jti string) string {
	return "revoked:" + jti
}
