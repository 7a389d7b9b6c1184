package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rx3lixir/astro_rtc/pkg/jwt"
	"github.com/rx3lixir/astro_rtc/pkg/logger"
	"github.com/rx3lixir/astro_rtc/pkg/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*chi.Mux, *jwt.Service) {
	t.Helper()

	hash, err := password.Hash("s3cret")
	require.NoError(t, err)

	jwtService := jwt.NewService("test-secret", time.Minute, time.Hour)
	log := logger.Discard()
	h := NewHandler(jwtService, Operator{ID: "ops", SecretHash: hash}, log)

	r := chi.NewRouter()
	r.Route("/auth", h.RegisterRoutes)
	r.Route("/admissions", func(r chi.Router) {
		r.Use(Middleware(jwtService, log))
		h.RegisterAdmissionRoutes(r)
	})
	return r, jwtService
}

func do(r http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleSignin(t *testing.T) {
	r, jwtService := newTestRouter(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "ok", body: `{"operator_id":"ops","secret":"s3cret"}`, wantStatus: http.StatusOK},
		{name: "wrong secret", body: `{"operator_id":"ops","secret":"nope"}`, wantStatus: http.StatusUnauthorized},
		{name: "wrong operator", body: `{"operator_id":"root","secret":"s3cret"}`, wantStatus: http.StatusUnauthorized},
		{name: "missing fields", body: `{"operator_id":"ops"}`, wantStatus: http.StatusBadRequest},
		{name: "bad json", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(r, http.MethodPost, "/auth/token", tt.body, "")
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp SigninResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "Bearer", resp.TokenType)

			operatorID, err := jwtService.ValidateOperatorToken(resp.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, "ops", operatorID)
		})
	}
}

func TestHandleSignin_NotConfigured(t *testing.T) {
	h := NewHandler(jwt.NewService("k", time.Minute, time.Minute), Operator{ID: "ops"}, logger.Discard())
	r := chi.NewRouter()
	r.Route("/auth", h.RegisterRoutes)

	rec := do(r, http.MethodPost, "/auth/token", `{"operator_id":"ops","secret":"x"}`, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleCreateAdmission(t *testing.T) {
	r, jwtService := newTestRouter(t)

	operatorToken, err := jwtService.GenerateOperatorToken("ops")
	require.NoError(t, err)

	body := `{"room_id":"abc123","participant_type":"astrologer","participant_id":"a-1","session_type":"video"}`

	rec := do(r, http.MethodPost, "/admissions", body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	admission, _, err := jwtService.GenerateAdmissionToken(jwt.Admission{RoomID: "r", Role: "user", ParticipantID: "u"})
	require.NoError(t, err)
	rec = do(r, http.MethodPost, "/admissions", body, admission)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "admission tokens are not operator tokens")

	rec = do(r, http.MethodPost, "/admissions", body, operatorToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp CreateAdmissionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.ExpiresAt.After(time.Now()))

	claims, err := jwtService.ValidateAdmissionToken(resp.Token)
	require.NoError(t, err)
	assert.True(t, claims.Admits("abc123", "astrologer", "a-1"))
	assert.Equal(t, "video", claims.SessionType)

	rec = do(r, http.MethodPost, "/admissions", `{"room_id":"abc123","participant_type":"guest","participant_id":"g"}`, operatorToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodPost, "/admissions", `{"room_id":"abc123","participant_type":"user","participant_id":"u","session_type":"fax"}`, operatorToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMiddleware_RejectsMalformedHeader(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/admissions", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
