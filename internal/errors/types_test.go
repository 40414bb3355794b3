package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorFormat(t *testing.T) {
	e := NewOAuth(http.StatusBadGateway, CodeTokenExchangeFailed, "exchange failed")
	if got := e.Error(); got != "[oauth/token_exchange_failed] exchange failed" {
		t.Fatalf("unexpected Error(): %q", got)
	}

	cause := errors.New("boom")
	we := e.WithCause(cause)
	if got := we.Error(); got != "[oauth/token_exchange_failed] exchange failed: boom" {
		t.Fatalf("unexpected wrapped Error(): %q", got)
	}
	if !errors.Is(we, cause) {
		t.Fatalf("expected errors.Is to find the cause")
	}
}

func TestAppError_CopySemantics(t *testing.T) {
	base := ErrInvalidEmailFormat

	e := base.WithDetail("campo to").WithContext("field", "to").WithContext("value", "bad")

	require.Empty(t, base.Detail, "base global must not be mutated")
	require.Nil(t, base.Context, "base global must not get context")
	require.Equal(t, "campo to", e.Detail)
	require.Equal(t, "to", e.Context["field"])

	// Copies fork: adding context to a derived error must not leak back.
	e2 := e.WithContext("extra", 1)
	require.NotContains(t, e.Context, "extra")
	require.Contains(t, e2.Context, "extra")
}

func TestAppError_WithStatus(t *testing.T) {
	e := ErrTokenRefreshFailed.WithStatus(http.StatusUnauthorized)
	require.Equal(t, http.StatusUnauthorized, e.HTTPStatus)
	require.Equal(t, http.StatusBadGateway, ErrTokenRefreshFailed.HTTPStatus)
}

func TestFromError(t *testing.T) {
	appErr := FromError(ErrNoRefreshToken)
	require.Same(t, ErrNoRefreshToken, appErr)

	plain := errors.New("db down")
	converted := FromError(plain)
	require.Equal(t, CodeInternal, converted.Code)
	require.Equal(t, KindInternal, converted.Kind)
	require.ErrorIs(t, converted, plain)
}

func TestKindHelpers(t *testing.T) {
	require.True(t, IsKind(ErrTokenExpired, KindOAuth))
	require.False(t, IsKind(ErrTokenExpired, KindEmail))
	require.False(t, IsKind(errors.New("x"), KindOAuth))

	require.Equal(t, CodeSendTimeout, CodeOf(ErrSendTimeout))
	require.Equal(t, "", CodeOf(errors.New("x")))

	require.Equal(t, http.StatusTooManyRequests, StatusOf(ErrSendLimitExceeded))
	require.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("x")))
}

func TestWriteError_SubCodes(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrInvalidEmailFormat.WithDetail("campo to: not-an-email"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Detail           string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "invalid_email_format", body.Error)
	require.Equal(t, "campo to: not-an-email", body.Detail)
}

func TestWriteError_InternalIsOpaque(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("pgx: connection refused dsn=postgres://user:pw@host"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "internal_error", body["error"])
	require.NotContains(t, rec.Body.String(), "pw@host")
}
