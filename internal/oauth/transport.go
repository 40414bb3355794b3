package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/dropDatabas3/mailjohn/internal/errors"
)

// maxResponseBytes caps how much of a provider response body is read.
const maxResponseBytes = 1 << 20

// PostForm performs a form-encoded POST against a provider endpoint and
// returns the status plus the (capped) response body. A returned error
// means no usable HTTP response arrived.
func PostForm(ctx context.Context, hc *http.Client, endpoint string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return doRead(hc, req)
}

// GetBearer performs a GET with the access token as bearer credential.
func GetBearer(ctx context.Context, hc *http.Client, endpoint, accessToken string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	return doRead(hc, req)
}

// PostJSONBearer posts a JSON payload with the access token as bearer
// credential.
func PostJSONBearer(ctx context.Context, hc *http.Client, endpoint, accessToken string, payload any) (int, []byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return doRead(hc, req)
}

func doRead(hc *http.Client, req *http.Request) (int, []byte, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// ProviderError is the error shape Google and Microsoft both use on
// their token endpoints.
type ProviderError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// DecodeProviderError best-effort parses a provider error body. A body
// that is not the expected JSON yields empty fields, never a failure.
func DecodeProviderError(body []byte) ProviderError {
	var pe ProviderError
	_ = json.Unmarshal(body, &pe)
	return pe
}

// TokenEndpointError builds the OAuth error for a non-2xx token endpoint
// response: base error (exchange or refresh), provider status as the
// surfaced status, provider error/description as detail and context.
func TokenEndpointError(base *apperrors.AppError, status int, body []byte) *apperrors.AppError {
	pe := DecodeProviderError(body)
	e := base.WithStatus(status).WithContext("provider_status", status)
	if pe.Error != "" {
		e = e.WithContext("provider_error", pe.Error)
	}
	switch {
	case pe.Error != "" && pe.ErrorDescription != "":
		e = e.WithDetail(fmt.Sprintf("%s: %s", pe.Error, pe.ErrorDescription))
	case pe.Error != "":
		e = e.WithDetail(pe.Error)
	case pe.ErrorDescription != "":
		e = e.WithDetail(pe.ErrorDescription)
	}
	return e
}

// ClassifySendError maps a transport-level send failure, one where no
// HTTP response arrived at all. Deadline expiry means the provider was
// reachable but slow; anything else means it was not reachable.
func ClassifySendError(err error) *apperrors.AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.ErrSendTimeout.WithCause(err)
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return apperrors.ErrSendTimeout.WithCause(err)
	}
	return apperrors.ErrProviderUnavailable.WithCause(err)
}

// SendErrorFromResponse maps a non-2xx send response. 429 surfaces the
// provider's quota rejection; everything else is the generic transport
// rejection carrying the provider message.
func SendErrorFromResponse(status int, body []byte) *apperrors.AppError {
	msg := providerMessage(body)
	base := apperrors.ErrNetworkError
	if status == http.StatusTooManyRequests {
		base = apperrors.ErrQuotaExceeded
	}
	e := base.WithContext("provider_status", status)
	if msg != "" {
		e = e.WithDetail(msg)
	}
	return e
}

// providerMessage digs the human message out of a provider error body.
// Gmail wraps it as {"error": {"message": ...}}, Graph as
// {"error": {"code": ..., "message": ...}}; a flat error_description is
// the OAuth-endpoint shape. Falls back to the raw body, truncated.
func providerMessage(body []byte) string {
	var nested struct {
		Error struct {
			Code    any    `json:"code"` // number on Gmail, string on Graph
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &nested); err == nil && nested.Error.Message != "" {
		if nested.Error.Code != nil {
			return fmt.Sprintf("%v: %s", nested.Error.Code, nested.Error.Message)
		}
		return nested.Error.Message
	}
	pe := DecodeProviderError(body)
	if pe.ErrorDescription != "" {
		return pe.ErrorDescription
	}
	if pe.Error != "" {
		return pe.Error
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}
