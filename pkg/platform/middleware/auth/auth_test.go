package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palisade/pkg/requestcontext"
)

const signingKey = "auth-test-signing-key"

func newVerifier() *Verifier {
	return NewVerifier(signingKey, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mintToken(t *testing.T, subject, key string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(key))
	require.NoError(t, err)
	return signed
}

func principalEcho(principal *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*principal = requestcontext.PrincipalID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestOptional(t *testing.T) {
	v := newVerifier()

	t.Run("anonymous request passes through", func(t *testing.T) {
		var principal string
		rec := httptest.NewRecorder()
		v.Optional(principalEcho(&principal)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, principal)
	})

	t.Run("valid token attaches the subject", func(t *testing.T) {
		var principal string
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+mintToken(t, "user-42", signingKey))

		rec := httptest.NewRecorder()
		v.Optional(principalEcho(&principal)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-42", principal)
	})

	t.Run("token signed with a different key is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+mintToken(t, "user-42", "wrong-key"))

		rec := httptest.NewRecorder()
		v.Optional(principalEcho(new(string))).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "user-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		})
		signed, err := token.SignedString([]byte(signingKey))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signed)

		rec := httptest.NewRecorder()
		v.Optional(principalEcho(new(string))).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token without a subject is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+mintToken(t, "", signingKey))

		rec := httptest.NewRecorder()
		v.Optional(principalEcho(new(string))).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequire(t *testing.T) {
	v := newVerifier()

	t.Run("missing token is rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		v.Require(principalEcho(new(string))).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token passes with the subject attached", func(t *testing.T) {
		var principal string
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+mintToken(t, "user-7", signingKey))

		rec := httptest.NewRecorder()
		v.Require(principalEcho(&principal)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-7", principal)
	})
}
