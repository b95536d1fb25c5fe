// Package auth populates the authenticated principal before the governance
// pipeline runs. The pipeline itself never authenticates; it only consumes
// the principal id this middleware attaches.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"palisade/pkg/requestcontext"
)

// Claims are the token claims the pipeline cares about.
type Claims struct {
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens and extracts the principal (subject).
type Verifier struct {
	signingKey []byte
	logger     *slog.Logger
}

// NewVerifier creates a token verifier with an HMAC signing key.
func NewVerifier(signingKey string, logger *slog.Logger) *Verifier {
	return &Verifier{signingKey: []byte(signingKey), logger: logger}
}

// principalFromToken parses and validates the token, returning its subject.
func (v *Verifier) principalFromToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.signingKey, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}

// Optional attaches the principal when a valid bearer token is present and
// passes anonymous requests through untouched. An invalid token is rejected:
// a caller that claims an identity must prove it.
func (v *Verifier) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		principal, err := v.principalFromToken(token)
		if err != nil {
			v.logger.WarnContext(r.Context(), "rejected invalid bearer token", "error", err)
			writeUnauthorized(w)
			return
		}

		ctx := requestcontext.WithPrincipalID(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require rejects requests without a valid bearer token.
func (v *Verifier) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeUnauthorized(w)
			return
		}

		principal, err := v.principalFromToken(token)
		if err != nil {
			v.logger.WarnContext(r.Context(), "rejected invalid bearer token", "error", err)
			writeUnauthorized(w)
			return
		}

		ctx := requestcontext.WithPrincipalID(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Missing or invalid Authorization header"}`))
}
