package apierrors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/accounts-service/internal/service"
)

func TestToHTTP_Table(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"nil", nil, 500, "internal", "Непредвиденная ошибка сервера"},
		{"plain", errors.New("db down: secret dsn"), 500, "internal", "Непредвиденная ошибка сервера"},
		{"email taken", fmt.Errorf("op: %w", service.ErrEmailTaken), 409, "already_exists", service.ErrEmailTaken.Msg},
		{"invalid credentials", service.ErrInvalidCredentials, 400, "invalid_argument", service.ErrInvalidCredentials.Msg},
		{"blocked", service.ErrUserBlocked, 403, "permission_denied", service.ErrUserBlocked.Msg},
		{"invalid token", service.ErrInvalidToken, 401, "unauthenticated", service.ErrInvalidToken.Msg},
		{"not found", service.ErrUserNotFound, 404, "not_found", service.ErrUserNotFound.Msg},
		{"bare kind", service.ErrForbidden, 403, "permission_denied", "Недостаточно прав"},
		{"bad request", BadRequest("Невалидный ID пользователя"), 400, "invalid_argument", "Невалидный ID пользователя"},
		{"deadline", fmt.Errorf("op: %w", context.DeadlineExceeded), 504, "deadline_exceeded", "deadline exceeded"},
		{"canceled", context.Canceled, StatusClientClosedRequest, "canceled", "canceled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := ToHTTP(tt.err)
			require.Equal(t, tt.wantStatus, status)
			require.Equal(t, tt.wantCode, resp.Error.Code)
			require.Equal(t, tt.wantMsg, resp.Error.Message)
			require.Empty(t, resp.Error.Details)
		})
	}
}

func TestToHTTP_ValidationErrors_Details(t *testing.T) {
	t.Parallel()

	err := validation.Errors{
		"email":    errors.New("must be a valid email address"),
		"password": errors.New("the length must be between 6 and 72"),
		"ok":       nil,
	}

	status, resp := ToHTTP(err)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "invalid_argument", resp.Error.Code)
	require.Len(t, resp.Error.Details, 2)
	require.Contains(t, resp.Error.Details, "email")
}

func TestWriteError_EnvelopeAndRequestID(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "rid-1")
	rr := httptest.NewRecorder()

	WriteError(rr, req, service.ErrAccessDenied)

	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "permission_denied", body.Error.Code)
	require.Equal(t, "rid-1", body.Error.RequestID)
}

func TestWriteStatus_Envelope(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodDelete, "/auth/login", nil)
	req.Header.Set("X-Request-Id", "rid-405")
	rec := httptest.NewRecorder()

	WriteStatus(rec, req, http.StatusMethodNotAllowed, "method_not_allowed", "Метод не поддерживается")

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "method_not_allowed", body.Error.Code)
	require.Equal(t, "rid-405", body.Error.RequestID)
	require.Empty(t, body.Error.Details)
}
