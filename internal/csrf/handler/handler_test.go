package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/csrf/models"
	"gatekeeper/internal/csrf/service"
	dErrors "gatekeeper/pkg/domain-errors"
)

type failingIssuer struct{}

func (failingIssuer) Issue(context.Context) (*models.IssuedToken, error) {
	return nil, dErrors.New(dErrors.CodeInternal, "could not generate token")
}

func TestHandleGetToken(t *testing.T) {
	svc := service.New()
	r := chi.NewRouter()
	New(svc, nil, true, 0).Register(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/csrf-token", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool               `json:"success"`
		Data    models.IssuedToken `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Len(t, body.Data.Token, 64)
	assert.Len(t, body.Data.SessionID, 32)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, models.CookieSessionID, c.Name)
	assert.Equal(t, body.Data.SessionID, c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Equal(t, DefaultCookieMaxAge, c.MaxAge)

	assert.NoError(t, svc.Validate(context.Background(), body.Data.SessionID, body.Data.Token))
}

func TestHandleGetTokenNotSecureOutsideProduction(t *testing.T) {
	rec := httptest.NewRecorder()
	New(service.New(), nil, false, 60).HandleGetToken(rec, httptest.NewRequest(http.MethodGet, "/csrf-token", nil))

	c := rec.Result().Cookies()[0]
	assert.False(t, c.Secure)
	assert.Equal(t, 60, c.MaxAge)
}

func TestHandleGetTokenFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	New(failingIssuer{}, nil, false, 0).HandleGetToken(rec, httptest.NewRequest(http.MethodGet, "/csrf-token", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Internal server error"}`, rec.Body.String())
	assert.Empty(t, rec.Result().Cookies())
}
