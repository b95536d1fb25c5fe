package schema

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palisade/pkg/requestcontext"
)

func newTestMiddleware() *Middleware {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newSchemaRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	ctx := requestcontext.WithContract(req.Context(), &requestcontext.Contract{
		RequestID: "req-123",
		ClientIP:  "203.0.113.10",
	})
	return req.WithContext(ctx)
}

func decodeErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestValidateChat(t *testing.T) {
	mw := newTestMiddleware()

	t.Run("valid body passes with canonical form on context", func(t *testing.T) {
		var seen *ChatRequest
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, ok := requestcontext.ValidatedBody(r.Context()).(*ChatRequest)
			require.True(t, ok)
			seen = body
			w.WriteHeader(http.StatusOK)
		})

		rec := httptest.NewRecorder()
		req := newSchemaRequest(t, `{"message":"  hello  "}`)
		mw.Validate(ShapeChat)(next).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "hello", seen.Message)
		assert.Equal(t, DefaultModel, seen.Model)
		assert.NotNil(t, seen.Attachments)
	})

	t.Run("body is replaced with canonical json", func(t *testing.T) {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := io.ReadAll(r.Body)
			require.NoError(t, err)

			var body ChatRequest
			require.NoError(t, json.Unmarshal(raw, &body))
			assert.Equal(t, "hello", body.Message)
			assert.Equal(t, DefaultModel, body.Model)
			w.WriteHeader(http.StatusOK)
		})

		rec := httptest.NewRecorder()
		req := newSchemaRequest(t, `{"message":" hello ","unknown":"dropped"}`)
		mw.Validate(ShapeChat)(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("malformed json returns validation envelope", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := newSchemaRequest(t, `{"message":`)
		mw.Validate(ShapeChat)(failOnCall(t)).ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeErrorResponse(t, rec)
		assert.Equal(t, "VALIDATION_ERROR", resp.Code)
		assert.Equal(t, "req-123", resp.RequestID)
		require.Len(t, resp.Errors, 1)
	})

	t.Run("empty body fails required checks", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := newSchemaRequest(t, "")
		mw.Validate(ShapeChat)(failOnCall(t)).ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeErrorResponse(t, rec)
		assert.Equal(t, "VALIDATION_ERROR", resp.Code)
		assert.Contains(t, resp.Message, "message is required")
	})

	t.Run("all field errors reported in one response", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := newSchemaRequest(t, `{"chatId":"nope","attachments":[{"mimeType":"application/pdf"}]}`)
		mw.Validate(ShapeChat)(failOnCall(t)).ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeErrorResponse(t, rec)

		fields := make([]string, 0, len(resp.Errors))
		for _, fe := range resp.Errors {
			fields = append(fields, fe.Field)
		}
		assert.Contains(t, fields, "message")
		assert.Contains(t, fields, "chat_id")
		assert.GreaterOrEqual(t, len(resp.Errors), 3)
	})
}

func TestValidateAnalyze(t *testing.T) {
	mw := newTestMiddleware()

	t.Run("valid body passes", func(t *testing.T) {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, ok := requestcontext.ValidatedBody(r.Context()).(*AnalyzeRequest)
			require.True(t, ok)
			assert.Equal(t, DefaultOutputFormat, body.OutputFormat)
			w.WriteHeader(http.StatusOK)
		})

		rec := httptest.NewRecorder()
		req := newSchemaRequest(t, `{"attachments":[{"filename":"report.pdf"}]}`)
		mw.Validate(ShapeAnalyze)(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing attachments rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := newSchemaRequest(t, `{"instructions":"summarize"}`)
		mw.Validate(ShapeAnalyze)(failOnCall(t)).ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeErrorResponse(t, rec)
		assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	})
}

func TestValidateGuards(t *testing.T) {
	mw := newTestMiddleware()

	t.Run("missing contract is an internal error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"message":"hi"}`))
		mw.Validate(ShapeChat)(failOnCall(t)).ServeHTTP(rec, req)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "context_not_initialized")
	})

	t.Run("unknown shape is an internal error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := newSchemaRequest(t, `{}`)
		mw.Validate(Shape("bogus"))(failOnCall(t)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func failOnCall(t *testing.T) http.Handler {
	return http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("next handler must not be called")
	})
}
