package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims is the verified content of a signed token. Subject is the
// username, which is the lookup key for the owning user.
type Claims struct {
	Subject   string
	Role      string
	Kind      TokenKind
	ExpiresAt time.Time
}

// TokenCodec signs and verifies the JWTs this service issues. The signing
// secret is process-wide and loaded once at startup.
type TokenCodec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenCodec(secret string, accessTTL, refreshTTL time.Duration) *TokenCodec {
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}

	return &TokenCodec{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (c *TokenCodec) TTL(kind TokenKind) time.Duration {
	if kind == KindRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

func (c *TokenCodec) Issue(user User, kind TokenKind) (string, error) {
	jti, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate jti: %w", err)
	}

	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": user.Username,
		"rol": user.Role,
		"typ": string(kind),
		"jti": jti.String(),
		"iat": now.Unix(),
		"exp": now.Add(c.TTL(kind)).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	encoded, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}

	return encoded, nil
}

// Verify checks signature and expiry and returns the claims. It is the only
// codec call that is sufficient for an authorization decision.
func (c *TokenCodec) Verify(tokenString string) (Claims, error) {
	raw := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, raw, func(token *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrInvalidSignature
		default:
			return Claims{}, ErrMalformedToken
		}
	}
	if !token.Valid {
		return Claims{}, ErrInvalidSignature
	}

	return claimsFrom(raw), nil
}

// SubjectOf extracts the subject without verifying the signature. It exists
// for store lookups only; callers deciding authorization must use Verify.
func (c *TokenCodec) SubjectOf(tokenString string) (string, error) {
	raw := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, raw); err != nil {
		return "", ErrMalformedToken
	}

	subject, _ := raw["sub"].(string)
	if subject == "" {
		return "", ErrMalformedToken
	}

	return subject, nil
}

func claimsFrom(raw jwt.MapClaims) Claims {
	claims := Claims{}
	claims.Subject, _ = raw["sub"].(string)
	claims.Role, _ = raw["rol"].(string)
	if kind, ok := raw["typ"].(string); ok {
		claims.Kind = TokenKind(kind)
	}
	if exp, ok := raw["exp"].(float64); ok {
		claims.ExpiresAt = time.Unix(int64(exp), 0).UTC()
	}
	return claims
}
