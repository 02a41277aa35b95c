package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cryptods8/openframedl-sub001/internal/game"
)

// ctxUserKey is the context key type for the caller's game.UserKey.
type ctxUserKey struct{}

// claims carry the caller identity: sub is the userId on the provider's network.
type claims struct {
	Provider game.IdentityProvider `json:"provider"`
	jwt.RegisteredClaims
}

// SignToken issues an HS256 token for user, valid for ttl.
func SignToken(secret string, user game.UserKey, ttl time.Duration) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Provider: user.IdentityProvider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return t.SignedString([]byte(secret))
}

// parseToken validates tok and returns the identity it names.
func parseToken(secret, tok string) (game.UserKey, error) {
	var c claims
	t, err := jwt.ParseWithClaims(tok, &c, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return game.UserKey{}, err
	}
	if !t.Valid || c.Subject == "" || !c.Provider.Valid() || c.Provider == game.ProviderAnonymous {
		return game.UserKey{}, errors.New("invalid identity claims")
	}
	return game.UserKey{UserID: c.Subject, IdentityProvider: c.Provider}, nil
}

// withOptionalAuth decorates requests with the token's identity when one is
// present and valid. It never 401s; callers without a token play anonymously.
func (s *Server) withOptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := bearerOrCookie(r, s.cfg.CookieName); tok != "" {
				if user, err := parseToken(s.cfg.JWTSecret, tok); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, user))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// identity returns the authenticated caller, or an anonymous identity backed
// by a long-lived cookie.
func (s *Server) identity(w http.ResponseWriter, r *http.Request) game.UserKey {
	if user, ok := r.Context().Value(ctxUserKey{}).(game.UserKey); ok {
		return user
	}
	return game.UserKey{UserID: s.ensureAnonID(w, r), IdentityProvider: game.ProviderAnonymous}
}

// authenticated returns the token identity only.
func authenticated(r *http.Request) *game.UserKey {
	if user, ok := r.Context().Value(ctxUserKey{}).(game.UserKey); ok {
		return &user
	}
	return nil
}

// ensureAnonID returns an existing anon cookie or sets a new one.
func (s *Server) ensureAnonID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(s.cfg.AnonCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	sameSite := http.SameSiteLaxMode
	if s.cfg.Production {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.AnonCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: sameSite,
		Expires:  time.Now().Add(180 * 24 * time.Hour),
	})
	return id
}

// bearerOrCookie extracts a bearer token from Authorization header or auth cookie.
func bearerOrCookie(r *http.Request, cookieName string) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}
