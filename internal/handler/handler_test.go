package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
	"banking-ledger/internal/ledger"
	"banking-ledger/internal/repository"
	"banking-ledger/internal/service"
)

func newAuthHandler(t *testing.T) (*AuthHandler, *service.AuthService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	store, err := repository.NewFileStore(filepath.Join(dir, "data.json"), logger)
	require.NoError(t, err)
	state, err := ledger.FromSnapshot(ledger.SeedSnapshot(time.Now()))
	require.NoError(t, err)

	ledgerService := service.NewLedgerService(state, store,
		repository.NewFileAuditLog(filepath.Join(dir, "log.txt"), logger), logger)
	auth := service.NewAuthService(ledgerService, []byte("secret"), time.Hour, logger)
	return NewAuthHandler(auth), auth
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) Error {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return *resp.Error
}

func TestHandleError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	handleError(rec, fmt.Errorf("dial tcp 10.0.0.1:5432: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "internal_error", body.Code)
	assert.Empty(t, body.Details)
}

func TestHandleError_KeepsAppErrorDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	handleError(rec, errors.ErrDailyLimitExceeded.WithDetails("deposited today 90000.00"))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "daily_limit_exceeded", body.Code)
	assert.Equal(t, "deposited today 90000.00", body.Details)
}

func TestHandleError_HidesCauseDetails(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "io error",
			err:        errors.ErrIO.Wrap(fmt.Errorf("open /var/lib/ledger/data.json.tmp: no space left on device")),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "io_error",
		},
		{
			name:       "io error with details",
			err:        errors.ErrIO.WithDetails("/var/lib/ledger"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "io_error",
		},
		{
			name:       "wrapped constraint failure",
			err:        errors.ErrInvalidInput.Wrap(fmt.Errorf("constraint failed: FOREIGN KEY constraint failed (787)")),
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Empty(t, body.Details)
			assert.NotContains(t, rec.Body.String(), "/var/lib")
			assert.NotContains(t, rec.Body.String(), "constraint failed")
		})
	}
}

func TestParseAmount(t *testing.T) {
	amount, appErr := parseAmount(" 12.50 ")
	require.Nil(t, appErr)
	assert.Equal(t, "12.5", amount.String())

	_, appErr = parseAmount("12,50")
	require.NotNil(t, appErr)
	assert.Equal(t, errors.InvalidAmount, appErr.Code)
}

func TestParseSort(t *testing.T) {
	key, appErr := parseSort(httptest.NewRequest("GET", "/x", nil))
	require.Nil(t, appErr)
	assert.Equal(t, domain.SortDateDesc, key)

	key, appErr = parseSort(httptest.NewRequest("GET", "/x?sort=amount_asc", nil))
	require.Nil(t, appErr)
	assert.Equal(t, domain.SortAmountAsc, key)

	_, appErr = parseSort(httptest.NewRequest("GET", "/x?sort=random", nil))
	require.NotNil(t, appErr)
	assert.Equal(t, errors.InvalidInput, appErr.Code)
}

func TestAuthenticateMiddleware(t *testing.T) {
	h, auth := newAuthHandler(t)

	var seen *service.Session
	protected := h.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthorized", decodeError(t, rec).Code)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Basic abc")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, _, err := auth.Login(t.Context(), "client1", "pass123")
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "u1", seen.UserID)
	})
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	employeeOnly := RequireRole(domain.RoleEmployee)(ok)

	serve := func(session *service.Session) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/", nil)
		if session != nil {
			req = req.WithContext(WithSession(req.Context(), session))
		}
		rec := httptest.NewRecorder()
		employeeOnly.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, serve(&service.Session{Role: domain.RoleEmployee}).Code)
	assert.Equal(t, http.StatusForbidden, serve(&service.Session{Role: domain.RoleClient}).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(nil).Code)
}

func TestLogoutWithoutSession(t *testing.T) {
	h, _ := newAuthHandler(t)
	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest("POST", "/logout", strings.NewReader("")))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
