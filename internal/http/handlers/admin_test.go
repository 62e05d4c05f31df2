package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/codelabx/regdesk/internal/domain/registration"
	"github.com/codelabx/regdesk/internal/http/handlers"
	"github.com/codelabx/regdesk/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIssuer struct {
	token string
	err   error
}

func (f *fakeIssuer) GenerateAccessToken(email, role string) (string, error) {
	return f.token, f.err
}

func newAdminHandler(t *testing.T, backend *fakeBackend, issuer *fakeIssuer) *handlers.AdminHandler {
	t.Helper()

	hash, err := security.HashPassword("hunter2hunter2")
	require.NoError(t, err)

	return handlers.NewAdminHandler(backend, issuer, "admin@club.dev", hash, discardLogger())
}

func TestAdminLogin(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		issuerErr  error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "valid credentials",
			body:       `{"email":"admin@club.dev","password":"hunter2hunter2"}`,
			wantStatus: http.StatusOK,
			wantBody:   `"accessToken":"tok-123"`,
		},
		{
			name:       "wrong password",
			body:       `{"email":"admin@club.dev","password":"wrongwrong"}`,
			wantStatus: http.StatusUnauthorized,
			wantBody:   "invalid_credentials",
		},
		{
			name:       "unknown email",
			body:       `{"email":"someone@club.dev","password":"hunter2hunter2"}`,
			wantStatus: http.StatusUnauthorized,
			wantBody:   "invalid_credentials",
		},
		{
			name:       "malformed body",
			body:       `{"email":"admin@club.dev"`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "short password rejected by binding",
			body:       `{"email":"admin@club.dev","password":"short"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "token minting failure",
			body:       `{"email":"admin@club.dev","password":"hunter2hunter2"}`,
			issuerErr:  errors.New("entropy exhausted"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAdminHandler(t, &fakeBackend{}, &fakeIssuer{token: "tok-123", err: tt.issuerErr})
			r := setupRouter(http.MethodPost, "/admin/login", h.Login)

			req := httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestAdminListRegistrations(t *testing.T) {
	backend := &fakeBackend{
		listFn: func(ctx context.Context, flow string) ([]registration.Record, error) {
			if flow != "general" {
				return nil, nil
			}
			return []registration.Record{
				{ID: "r1", Flow: "general", TeamName: "Solo Act", TeamSize: 1},
			}, nil
		},
	}

	h := newAdminHandler(t, backend, &fakeIssuer{token: "tok"})
	r := setupRouter(http.MethodGet, "/admin/registrations", h.ListRegistrations)

	t.Run("flow with rows", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/registrations?flow=general", nil))

		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Flow          string                `json:"flow"`
			Count         int                   `json:"count"`
			Registrations []registration.Record `json:"registrations"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "general", resp.Flow)
		assert.Equal(t, 1, resp.Count)
		require.Len(t, resp.Registrations, 1)
		assert.Equal(t, "Solo Act", resp.Registrations[0].TeamName)
	})

	t.Run("defaults to hackathon and never returns null", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/registrations", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"flow":"hackathon"`)
		assert.Contains(t, w.Body.String(), `"registrations":[]`)
	})

	t.Run("backend failure", func(t *testing.T) {
		failing := &fakeBackend{
			listFn: func(ctx context.Context, flow string) ([]registration.Record, error) {
				return nil, errors.New("db down")
			},
		}
		h := newAdminHandler(t, failing, &fakeIssuer{token: "tok"})
		r := setupRouter(http.MethodGet, "/admin/registrations", h.ListRegistrations)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/registrations", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
