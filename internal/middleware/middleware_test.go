package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SigNoz/storefront-api/internal/auth"
	"github.com/SigNoz/storefront-api/internal/metrics"
	"github.com/SigNoz/storefront-api/internal/models"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuthenticator map[string]*models.User

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (*models.User, error) {
	if token == "broken" {
		return nil, errors.New("database unavailable")
	}
	if u, ok := s[token]; ok {
		return u, nil
	}
	return nil, auth.ErrInvalidToken
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["message"]
}

func TestAuthGates(t *testing.T) {
	authn := stubAuthenticator{
		"user-token":  {ID: 1, IsActive: true},
		"admin-token": {ID: 2, IsActive: true, IsAdmin: true},
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found := UserFromContext(r.Context())
		require.True(t, found)
		w.WriteHeader(http.StatusNoContent)
	})

	userRoute := Authenticate(authn)(ok)
	adminRoute := Authenticate(authn)(RequireAdmin(ok))

	tests := []struct {
		name    string
		handler http.Handler
		header  string
		status  int
		message string
	}{
		{"missing header", userRoute, "", http.StatusUnauthorized, MsgNoToken},
		{"not bearer", userRoute, "Basic abc", http.StatusUnauthorized, MsgNoToken},
		{"empty bearer", userRoute, "Bearer ", http.StatusUnauthorized, MsgNoToken},
		{"bad token", userRoute, "Bearer nope", http.StatusUnauthorized, MsgInvalidToken},
		{"lookup failure", userRoute, "Bearer broken", http.StatusInternalServerError, "Server error"},
		{"user ok", userRoute, "Bearer user-token", http.StatusNoContent, ""},
		{"admin route as user", adminRoute, "Bearer user-token", http.StatusForbidden, MsgAdminOnly},
		{"admin route without token", adminRoute, "", http.StatusUnauthorized, MsgNoToken},
		{"admin route as admin", adminRoute, "Bearer admin-token", http.StatusNoContent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, decodeMessage(t, rec))
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	RecoveryMiddleware(true)(panicky).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Server error", body["message"])
	assert.Equal(t, "boom", body["error"])

	rec = httptest.NewRecorder()
	RecoveryMiddleware(false)(panicky).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	body = map[string]string{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	_, exposed := body["error"]
	assert.False(t, exposed)
}

func TestRequestIDAndCORS(t *testing.T) {
	var seen string
	h := CORSMiddleware(RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "abc", seen)

	rec = httptest.NewRecorder()
	seen = ""
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, seen, "preflight does not reach the handler")
}

func TestMetricsMiddleware_CapturesStatus(t *testing.T) {
	r := mux.NewRouter()
	r.Use(MetricsMiddleware(metrics.NewNoop()))
	r.HandleFunc("/missing/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing/1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
