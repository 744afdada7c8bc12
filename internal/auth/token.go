package auth

import (
	"errors"
	"time"

	"github.com/GolovachevS/pr-reviewer-rbac/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of an access token. Subject holds the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates HS256 access tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for identity valid for the configured TTL.
func (m *TokenManager) Issue(identity domain.Identity) (string, error) {
	now := m.now()
	claims := Claims{
		Role: string(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse validates the token and returns the identity it carries.
func (m *TokenManager) Parse(raw string) (domain.Identity, error) {
	if raw == "" {
		return domain.Identity{}, domain.NewUnauthorizedError("token is required", nil)
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, domain.NewUnauthorizedError("token has expired", err)
		}
		return domain.Identity{}, domain.NewUnauthorizedError("could not validate token", err)
	}

	role := domain.Role(claims.Role)
	if claims.Subject == "" || !role.Valid() {
		return domain.Identity{}, domain.NewUnauthorizedError("could not validate token", nil)
	}

	return domain.Identity{UserID: claims.Subject, Role: role}, nil
}
