// Package google implements the Google side of the provider contract:
// OAuth 2.0 authorization-code flow against accounts.google.com and
// mail delivery through the Gmail raw-send endpoint.
package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/mailjohn/internal/domain/repository"
	"github.com/dropDatabas3/mailjohn/internal/domain/types"
	apperrors "github.com/dropDatabas3/mailjohn/internal/errors"
	"github.com/dropDatabas3/mailjohn/internal/metrics"
	"github.com/dropDatabas3/mailjohn/internal/oauth"
	"github.com/dropDatabas3/mailjohn/internal/observability/logger"
	"github.com/dropDatabas3/mailjohn/internal/validation"
)

const (
	authEndpoint     = "https://accounts.google.com/o/oauth2/v2/auth"
	tokenEndpoint    = "https://oauth2.googleapis.com/token"
	userinfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"
	sendEndpoint     = "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"
	revokeEndpoint   = "https://oauth2.googleapis.com/revoke"
)

// maxMessageBytes is the Gmail cap on a raw message, attachments included.
const maxMessageBytes = 25 << 20

var scopes = []string{
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// Adapter is the Google implementation of the provider contract.
type Adapter struct {
	repo  repository.ConfigurationRepository
	guard *oauth.RefreshGuard
	http  *http.Client
	log   *zap.Logger

	// Endpoints are fields so package tests can point them at fixtures.
	authEndpoint     string
	tokenEndpoint    string
	userinfoEndpoint string
	sendEndpoint     string
	revokeEndpoint   string
}

// Options tunes the adapter; zero values take defaults.
type Options struct {
	Timeout time.Duration // outbound HTTP timeout, default 10s
}

// New creates the Google adapter.
func New(repo repository.ConfigurationRepository, guard *oauth.RefreshGuard, opts Options) *Adapter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if guard == nil {
		guard = oauth.NewRefreshGuard()
	}
	return &Adapter{
		repo:             repo,
		guard:            guard,
		http:             &http.Client{Timeout: timeout},
		log:              logger.Named("oauth.google"),
		authEndpoint:     authEndpoint,
		tokenEndpoint:    tokenEndpoint,
		userinfoEndpoint: userinfoEndpoint,
		sendEndpoint:     sendEndpoint,
		revokeEndpoint:   revokeEndpoint,
	}
}

// Provider reports the identity this adapter serves.
func (a *Adapter) Provider() types.Provider { return types.ProviderGoogle }

// StoreConfiguration validates and persists a new Google configuration.
// Tokens stay unset; no network call is made.
func (a *Adapter) StoreConfiguration(ctx context.Context, in oauth.ConfigurationInput) (*repository.VendorEmailConfiguration, error) {
	cfg, err := oauth.NewConfiguration(in, types.ProviderGoogle)
	if err != nil {
		return nil, err
	}
	if err := a.repo.Create(ctx, cfg); err != nil {
		return nil, apperrors.ErrInternal.WithCause(err)
	}
	a.log.Info("configuration stored",
		logger.ConfigID(cfg.ID),
		logger.VendorID(cfg.VendorID),
		logger.LocationID(cfg.LocationID),
	)
	return cfg, nil
}

// GetAuthorizationURL builds the consent URL for the stored configuration.
func (a *Adapter) GetAuthorizationURL(ctx context.Context, configID string) (string, error) {
	cfg, err := oauth.LoadConfiguration(ctx, a.repo, configID, types.ProviderGoogle)
	if err != nil {
		return "", err
	}
	state, err := oauth.EncodeState(cfg.ID, "")
	if err != nil {
		return "", err
	}

	u, err := url.Parse(a.authEndpoint)
	if err != nil {
		return "", apperrors.ErrInternal.WithCause(err)
	}
	q := u.Query()
	q.Set("client_id", cfg.ClientID)
	q.Set("redirect_uri", cfg.RedirectURI)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(scopes, " "))
	// offline + consent forces Google to issue a refresh token
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// tokenResponse is the token endpoint response for exchange and refresh.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// HandleAuthorizationCallback exchanges the code and attaches user info.
// The target configuration comes from the decoded state, nothing else.
func (a *Adapter) HandleAuthorizationCallback(ctx context.Context, code, state string) (*types.TokenData, error) {
	if strings.TrimSpace(code) == "" {
		return nil, apperrors.ErrInvalidAuthorizationCode
	}
	st, err := oauth.DecodeState(state)
	if err != nil {
		return nil, err
	}
	cfg, err := oauth.LoadCallbackConfiguration(ctx, a.repo, st.ConfigID, types.ProviderGoogle)
	if err != nil {
		return nil, err
	}

	td, err := a.exchangeCode(ctx, cfg, code)
	if err != nil {
		return nil, err
	}

	// Fail fast: a token that cannot be attributed to a user is never
	// returned for storage.
	info, err := a.GetUserInfo(ctx, td.AccessToken)
	if err != nil {
		return nil, err
	}
	td.UserInfo = info

	a.log.Info("authorization callback completed",
		logger.ConfigID(cfg.ID),
		logger.HasToken("refresh_token", td.RefreshToken != ""),
	)
	return td, nil
}

func (a *Adapter) exchangeCode(ctx context.Context, cfg *repository.VendorEmailConfiguration, code string) (*types.TokenData, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", cfg.ClientID)
	form.Set("client_secret", cfg.ClientSecret)
	form.Set("redirect_uri", cfg.RedirectURI)

	status, body, err := oauth.PostForm(ctx, a.http, a.tokenEndpoint, form)
	metrics.ObserveProviderRequest("google", "exchange_code", status)
	if err != nil {
		return nil, apperrors.ErrTokenExchangeFailed.WithCause(err).WithContext("config_id", cfg.ID)
	}
	if status < 200 || status >= 300 {
		return nil, oauth.TokenEndpointError(apperrors.ErrTokenExchangeFailed, status, body).
			WithContext("config_id", cfg.ID)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, apperrors.ErrTokenExchangeFailed.
			WithDetail("respuesta del proveedor ilegible").WithCause(err)
	}
	if tr.AccessToken == "" {
		return nil, apperrors.ErrTokenExchangeFailed.WithDetail("la respuesta no trae access_token")
	}
	return &types.TokenData{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    tr.ExpiresIn,
		TokenType:    tr.TokenType,
		Scope:        tr.Scope,
	}, nil
}

// StoreToken persists the exchange result. userEmail comes from the
// `email` field of the Google userinfo blob.
func (a *Adapter) StoreToken(ctx context.Context, cfg *repository.VendorEmailConfiguration, td *types.TokenData) (*repository.VendorEmailConfiguration, error) {
	updated, err := oauth.PersistToken(ctx, a.repo, cfg, td, userEmailFrom(td.UserInfo), apperrors.CodeTokenExchangeFailed)
	if err != nil {
		return nil, err
	}
	a.log.Info("token stored",
		logger.ConfigID(updated.ID),
		logger.HasToken("access_token", updated.HasAccessToken()),
		logger.HasToken("refresh_token", updated.HasRefreshToken()),
	)
	return updated, nil
}

func userEmailFrom(info map[string]any) string {
	if info == nil {
		return ""
	}
	email, _ := info["email"].(string)
	return email
}

// GetValidToken returns cfg untouched while the token is good for more
// than the lookahead window; otherwise it refreshes first.
func (a *Adapter) GetValidToken(ctx context.Context, cfg *repository.VendorEmailConfiguration) (*repository.VendorEmailConfiguration, error) {
	if !cfg.HasAccessToken() {
		return nil, apperrors.ErrInvalidToken.WithContext("config_id", cfg.ID)
	}
	if !cfg.IsExpiringSoon() {
		return cfg, nil
	}
	return a.RefreshToken(ctx, cfg)
}

// RefreshToken trades the stored refresh token for a fresh access token.
// Google may omit refresh_token in the response; the stored one is kept.
func (a *Adapter) RefreshToken(ctx context.Context, cfg *repository.VendorEmailConfiguration) (*repository.VendorEmailConfiguration, error) {
	if !cfg.HasRefreshToken() {
		return nil, apperrors.ErrNoRefreshToken.WithContext("config_id", cfg.ID)
	}
	updated, err := a.guard.Do(cfg.ID, func() (*repository.VendorEmailConfiguration, error) {
		return a.refresh(ctx, cfg)
	})
	metrics.MarkRefresh("google", err == nil)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (a *Adapter) refresh(ctx context.Context, cfg *repository.VendorEmailConfiguration) (*repository.VendorEmailConfiguration, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", *cfg.RefreshToken)
	form.Set("client_id", cfg.ClientID)
	form.Set("client_secret", cfg.ClientSecret)

	status, body, err := oauth.PostForm(ctx, a.http, a.tokenEndpoint, form)
	metrics.ObserveProviderRequest("google", "refresh_token", status)
	if err != nil {
		return nil, apperrors.ErrTokenRefreshFailed.WithCause(err).WithContext("config_id", cfg.ID)
	}
	if status < 200 || status >= 300 {
		return nil, oauth.TokenEndpointError(apperrors.ErrTokenRefreshFailed, status, body).
			WithContext("config_id", cfg.ID)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, apperrors.ErrTokenRefreshFailed.
			WithDetail("respuesta del proveedor ilegible").WithCause(err)
	}
	if tr.AccessToken == "" {
		return nil, apperrors.ErrTokenRefreshFailed.WithDetail("la respuesta no trae access_token")
	}

	td := &types.TokenData{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken, // usually empty: Google reuses the grant
		ExpiresIn:    tr.ExpiresIn,
		TokenType:    tr.TokenType,
		Scope:        tr.Scope,
	}
	updated, err := oauth.PersistToken(ctx, a.repo, cfg, td, "", apperrors.CodeTokenRefreshFailed)
	if err != nil {
		return nil, err
	}
	a.log.Info("token refreshed",
		logger.ConfigID(updated.ID),
		logger.HasToken("refresh_token_reissued", tr.RefreshToken != ""),
	)
	return updated, nil
}

// SendEmail validates, ensures a fresh token and performs exactly one
// send attempt against the Gmail raw endpoint. No internal retry.
func (a *Adapter) SendEmail(ctx context.Context, cfg *repository.VendorEmailConfiguration, msg *types.EmailMessage) (bool, error) {
	if err := validation.ValidateMessage(msg, maxMessageBytes); err != nil {
		return false, err
	}

	start := time.Now()
	defer func() {
		metrics.EmailSendDuration.WithLabelValues(string(types.ProviderGoogle)).Observe(time.Since(start).Seconds())
	}()

	cfg, err := a.GetValidToken(ctx, cfg)
	if err != nil {
		return false, err
	}

	raw, err := buildRawMessage(cfg, msg)
	if err != nil {
		return false, err
	}

	status, body, err := oauth.PostJSONBearer(ctx, a.http, a.sendEndpoint, *cfg.AccessToken, map[string]string{"raw": raw})
	metrics.ObserveProviderRequest("google", "send_email", status)
	if err != nil {
		return false, oauth.ClassifySendError(err)
	}
	if status < 200 || status >= 300 {
		return false, oauth.SendErrorFromResponse(status, body)
	}

	a.log.Info("email sent",
		logger.ConfigID(cfg.ID),
		logger.String("to", msg.To),
		logger.Int("attachments", len(msg.Attachments)),
	)
	return true, nil
}

// GetUserInfo returns the raw Google profile JSON, unmodified.
func (a *Adapter) GetUserInfo(ctx context.Context, accessToken string) (map[string]any, error) {
	status, body, err := oauth.GetBearer(ctx, a.http, a.userinfoEndpoint, accessToken)
	metrics.ObserveProviderRequest("google", "get_user_info", status)
	if err != nil {
		return nil, apperrors.ErrUserInfoFailed.WithCause(err)
	}
	if status < 200 || status >= 300 {
		return nil, apperrors.ErrUserInfoFailed.
			WithStatus(status).
			WithContext("provider_status", status)
	}
	var info map[string]any
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, apperrors.ErrUserInfoFailed.
			WithDetail("perfil del proveedor ilegible").WithCause(err)
	}
	return info, nil
}

// ValidateToken probes the userinfo endpoint. Every failure is false.
func (a *Adapter) ValidateToken(ctx context.Context, accessToken string) bool {
	if strings.TrimSpace(accessToken) == "" {
		return false
	}
	_, err := a.GetUserInfo(ctx, accessToken)
	return err == nil
}

// RevokeToken posts the access token to the revoke endpoint. On provider
// success the stored token fields are cleared and the result is true; on
// provider failure it is false with no error. Best effort by contract.
func (a *Adapter) RevokeToken(ctx context.Context, cfg *repository.VendorEmailConfiguration) (bool, error) {
	if !cfg.HasAccessToken() {
		// Nothing to revoke provider-side; leave local state as is.
		return false, nil
	}

	form := url.Values{}
	form.Set("token", *cfg.AccessToken)

	status, _, err := oauth.PostForm(ctx, a.http, a.revokeEndpoint, form)
	metrics.ObserveProviderRequest("google", "revoke_token", status)
	if err != nil {
		a.log.Warn("revoke request failed", logger.ConfigID(cfg.ID), logger.Err(err))
		return false, nil
	}
	if status < 200 || status >= 300 {
		a.log.Warn("provider rejected revoke",
			logger.ConfigID(cfg.ID),
			logger.Int("provider_status", status),
		)
		return false, nil
	}

	if _, err := a.repo.ClearTokens(ctx, cfg.ID); err != nil {
		return false, apperrors.ErrInternal.WithCause(err).WithContext("config_id", cfg.ID)
	}
	a.log.Info("token revoked", logger.ConfigID(cfg.ID))
	return true, nil
}
