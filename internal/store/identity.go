package store

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

type supabaseClaims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

// JWTIdentity verifies Supabase access tokens locally with the project's
// JWT secret instead of calling the auth endpoint.
type JWTIdentity struct {
	secret []byte
}

func NewJWTIdentity(secret string) *JWTIdentity {
	return &JWTIdentity{secret: []byte(secret)}
}

func (j *JWTIdentity) FetchUserProfile(ctx context.Context, token string) (*Profile, error) {
	claims := &supabaseClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, newError(http.StatusUnauthorized, "token expired")
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, newError(http.StatusUnauthorized, "invalid token signature")
		default:
			return nil, newError(http.StatusUnauthorized, "invalid token: %v", err)
		}
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, newError(http.StatusUnauthorized, "token has no subject")
	}
	return &Profile{
		ID:           claims.Subject,
		Email:        claims.Email,
		UserMetadata: claims.UserMetadata,
	}, nil
}

// StaticIdentity resolves tokens from a fixed table. Used by the memory
// backend and in tests.
type StaticIdentity struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func NewStaticIdentity(profiles map[string]Profile) *StaticIdentity {
	copied := make(map[string]Profile, len(profiles))
	for token, profile := range profiles {
		copied[token] = profile
	}
	return &StaticIdentity{profiles: copied}
}

func (s *StaticIdentity) Add(token string, profile Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[token] = profile
}

func (s *StaticIdentity) FetchUserProfile(ctx context.Context, token string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[token]
	if !ok {
		return nil, newError(http.StatusUnauthorized, "unknown token")
	}
	return &profile, nil
}
