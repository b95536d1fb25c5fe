package httptransport

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palisade/internal/audit"
	"palisade/internal/idempotency"
	"palisade/internal/platform/health"
	quotamodels "palisade/internal/quota/models"
	quotamw "palisade/internal/quota/middleware"
	quotaservice "palisade/internal/quota/service"
	ratelimitconfig "palisade/internal/ratelimit/config"
	ratelimitmw "palisade/internal/ratelimit/middleware"
	ratelimitservice "palisade/internal/ratelimit/service"
	"palisade/internal/ratelimit/store/window"
	"palisade/internal/schema"
	authmw "palisade/pkg/platform/middleware/auth"
	contractmw "palisade/pkg/platform/middleware/contract"
)

const testSigningKey = "router-test-signing-key"

type testEnv struct {
	router     http.Handler
	auditStore *audit.InMemoryStore
	recorder   *audit.Recorder
}

func newTestEnv(t *testing.T, rlConfig *ratelimitconfig.Config) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if rlConfig == nil {
		rlConfig = ratelimitconfig.Default()
	}
	limiter, err := ratelimitservice.New(window.NewInMemoryStore(),
		ratelimitservice.WithLogger(logger),
		ratelimitservice.WithConfig(rlConfig),
	)
	require.NoError(t, err)

	auditStore := audit.NewInMemoryStore()
	publisher := audit.NewPublisher(auditStore)
	recorder := audit.NewRecorder(publisher, logger, nil)

	idem := idempotency.NewService(idempotency.NewInMemoryStore(), idempotency.WithLogger(logger))

	quota := quotaservice.New(
		quotaservice.WithLogger(logger),
		quotaservice.WithLimits(quotamodels.Limits{
			MaxFileBytes:  1 << 20,
			MaxTotalBytes: 4 << 20,
			MaxFileCount:  3,
			MaxTotalPages: 100,
			BytesPerPage:  3000,
		}),
	)

	handler := NewHandler(logger, idem, publisher)
	router := NewRouter(handler, RouterConfig{
		Logger:         logger,
		Verifier:       authmw.NewVerifier(testSigningKey, logger),
		Contract:       contractmw.New(logger, contractmw.WithPeekLimit(1<<20)),
		Schema:         schema.New(logger),
		Quota:          quotamw.New(quota, logger),
		RateLimit:      ratelimitmw.New(limiter, logger),
		Audit:          recorder,
		Health:         health.New("test"),
		MaxBodyBytes:   1 << 20,
		RequestTimeout: 5 * time.Second,
	})

	return &testEnv{router: router, auditStore: auditStore, recorder: recorder}
}

func signToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSigningKey))
	require.NoError(t, err)
	return signed
}

func postJSON(env *testEnv, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.10:54321"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func TestChatEndpoint(t *testing.T) {
	t.Run("valid request is accepted with pipeline headers", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec := postJSON(env, "/v1/chat", `{"message":"hello"}`, nil)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining"))

		var resp chatResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "accepted", resp.Status)
		assert.Equal(t, schema.DefaultModel, resp.Model)
		assert.NotEmpty(t, resp.ChatID)
	})

	t.Run("mutating request leaves an audit record", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec := postJSON(env, "/v1/chat", `{"message":"hello"}`, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		env.recorder.Wait()

		records := env.auditStore.All()
		require.Len(t, records, 1)
		assert.Equal(t, audit.ActionChatMessage, records[0].Action)
		assert.Equal(t, http.StatusCreated, records[0].Status)
		assert.Equal(t, "203.0.113.10", records[0].ClientIP)
	})

	t.Run("invalid body is rejected before the handler", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec := postJSON(env, "/v1/chat", `{"chatId":"not-a-uuid"}`, nil)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp schema.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "VALIDATION_ERROR", resp.Code)
		assert.NotEmpty(t, resp.Errors)

		env.recorder.Wait()
		assert.Empty(t, env.auditStore.All(), "rejected requests are not audited")
	})

	t.Run("wrong content type is rejected", func(t *testing.T) {
		env := newTestEnv(t, nil)
		req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader("message=hi"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("idempotency key replays the original response", func(t *testing.T) {
		env := newTestEnv(t, nil)
		headers := map[string]string{"X-Idempotency-Key": "order-66"}

		first := postJSON(env, "/v1/chat", `{"message":"hello"}`, headers)
		require.Equal(t, http.StatusCreated, first.Code)

		second := postJSON(env, "/v1/chat", `{"message":"hello"}`, headers)
		require.Equal(t, http.StatusCreated, second.Code)
		assert.Equal(t, "true", second.Header().Get("X-Idempotent-Replay"))
		assert.JSONEq(t, first.Body.String(), second.Body.String())

		env.recorder.Wait()
		records := env.auditStore.All()
		require.Len(t, records, 1, "one execution, one audit record")
		assert.Equal(t, http.StatusCreated, records[0].Status)
	})

	t.Run("idempotency key reuse with different payload conflicts", func(t *testing.T) {
		env := newTestEnv(t, nil)
		headers := map[string]string{"X-Idempotency-Key": "order-66"}

		first := postJSON(env, "/v1/chat", `{"message":"hello"}`, headers)
		require.Equal(t, http.StatusCreated, first.Code)

		second := postJSON(env, "/v1/chat", `{"message":"different"}`, headers)
		assert.Equal(t, http.StatusConflict, second.Code)

		env.recorder.Wait()
		assert.Len(t, env.auditStore.All(), 1, "rejected duplicate is not audited")
	})
}

func TestAnalyzeEndpoint(t *testing.T) {
	t.Run("valid request is accepted", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec := postJSON(env, "/v1/analyze", `{"attachments":[{"filename":"report.pdf","size":1024}]}`, nil)

		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		var resp analyzeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.AttachmentCount)
		assert.Equal(t, schema.DefaultOutputFormat, resp.OutputFormat)
	})

	t.Run("oversized attachments are rejected with the violation list", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec := postJSON(env, "/v1/analyze", `{"attachments":[{"filename":"huge.pdf","size":2097152}]}`, nil)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var resp quotamw.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "QUOTA_EXCEEDED", resp.Code)
		require.NotEmpty(t, resp.Violations)
		assert.Equal(t, "huge.pdf", resp.Violations[0].Filename)
		assert.Equal(t, int64(1<<20), resp.Limits.MaxFileBytes)
	})
}

func TestRateLimiting(t *testing.T) {
	env := newTestEnv(t, &ratelimitconfig.Config{
		IP:            ratelimitconfig.Limit{Max: 2, Window: time.Minute},
		User:          ratelimitconfig.Limit{Max: 10, Window: time.Minute},
		SweepInterval: time.Minute,
	})

	for i := 0; i < 2; i++ {
		rec := postJSON(env, "/v1/chat", `{"message":"hello"}`, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := postJSON(env, "/v1/chat", `{"message":"hello"}`, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var resp struct {
		Error struct {
			Code       string `json:"code"`
			RetryAfter int    `json:"retryAfter"`
			LimitType  string `json:"limitType"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ip", resp.Error.LimitType)
	assert.GreaterOrEqual(t, resp.Error.RetryAfter, 1)
	assert.LessOrEqual(t, resp.Error.RetryAfter, 60)
}

func TestAuditTrailEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("requires authentication", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/audit", nil)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("returns the caller's records", func(t *testing.T) {
		token := signToken(t, "user-42")
		rec := postJSON(env, "/v1/chat", `{"message":"hello"}`, map[string]string{
			"Authorization": "Bearer " + token,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		env.recorder.Wait()

		req := httptest.NewRequest(http.MethodGet, "/v1/audit", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		got := httptest.NewRecorder()
		env.router.ServeHTTP(got, req)

		require.Equal(t, http.StatusOK, got.Code)
		var resp auditTrailResponse
		require.NoError(t, json.Unmarshal(got.Body.Bytes(), &resp))
		require.Len(t, resp.Records, 1)
		require.NotNil(t, resp.Records[0].PrincipalID)
		assert.Equal(t, "user-42", *resp.Records[0].PrincipalID)
	})
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
