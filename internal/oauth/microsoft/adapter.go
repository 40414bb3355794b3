// Package microsoft implements the Microsoft side of the provider
// contract: OAuth 2.0 authorization-code flow against the identity
// platform (v2.0 endpoints, tenant-scoped) and mail delivery through
// Graph sendMail. Microsoft has no user-delegated revocation endpoint,
// so revocation is simulated by clearing the stored tokens.
package microsoft

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	cachemem "github.com/dropDatabas3/mailjohn/internal/cache/memory"
	"github.com/dropDatabas3/mailjohn/internal/domain/repository"
	"github.com/dropDatabas3/mailjohn/internal/domain/types"
	apperrors "github.com/dropDatabas3/mailjohn/internal/errors"
	"github.com/dropDatabas3/mailjohn/internal/metrics"
	"github.com/dropDatabas3/mailjohn/internal/oauth"
	"github.com/dropDatabas3/mailjohn/internal/observability/logger"
	"github.com/dropDatabas3/mailjohn/internal/validation"
)

const (
	defaultLoginBase = "https://login.microsoftonline.com"
	defaultGraphBase = "https://graph.microsoft.com/v1.0"
)

// maxMessageBytes is the Graph sendMail cap on inline attachments.
const maxMessageBytes = 3 << 20

var scopes = []string{"offline_access", "User.Read", "Mail.Send"}

// Adapter is the Microsoft implementation of the provider contract.
type Adapter struct {
	repo   repository.ConfigurationRepository
	states *oauth.StateStore
	guard  *oauth.RefreshGuard
	http   *http.Client
	log    *zap.Logger

	// Bases are fields so package tests can point them at fixtures.
	loginBase string
	graphBase string
}

// Options tunes the adapter; zero values take defaults.
type Options struct {
	Timeout time.Duration // outbound HTTP timeout, default 10s
}

// New creates the Microsoft adapter. states backs the anti-forgery
// nonces of the authorization redirect; pass a store over the shared
// cache in production so every instance can consume what any instance
// issued. A nil states gets a process-local fallback.
func New(repo repository.ConfigurationRepository, states *oauth.StateStore, guard *oauth.RefreshGuard, opts Options) *Adapter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if guard == nil {
		guard = oauth.NewRefreshGuard()
	}
	if states == nil {
		secret := make([]byte, 32)
		_, _ = rand.Read(secret)
		states = oauth.NewStateStore(cachemem.New(oauth.NonceTTL), secret)
	}
	return &Adapter{
		repo:      repo,
		states:    states,
		guard:     guard,
		http:      &http.Client{Timeout: timeout},
		log:       logger.Named("oauth.microsoft"),
		loginBase: defaultLoginBase,
		graphBase: defaultGraphBase,
	}
}

// Provider reports the identity this adapter serves.
func (a *Adapter) Provider() types.Provider { return types.ProviderMicrosoft }

func (a *Adapter) authorizeEndpoint(tenant string) string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0/authorize", a.loginBase, tenant)
}

func (a *Adapter) tokenEndpoint(tenant string) string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0/token", a.loginBase, tenant)
}

func (a *Adapter) meEndpoint() string       { return a.graphBase + "/me" }
func (a *Adapter) sendMailEndpoint() string { return a.graphBase + "/me/sendMail" }

// StoreConfiguration validates and persists a new Microsoft
// configuration. An empty tenantId falls back to "common" at use time.
func (a *Adapter) StoreConfiguration(ctx context.Context, in oauth.ConfigurationInput) (*repository.VendorEmailConfiguration, error) {
	cfg, err := oauth.NewConfiguration(in, types.ProviderMicrosoft)
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
		logger.String("tenant", cfg.TenantOrCommon()),
	)
	return cfg, nil
}

// GetAuthorizationURL builds the consent URL for the stored
// configuration, with the tenant in the path and an anti-forgery nonce
// embedded in the state.
func (a *Adapter) GetAuthorizationURL(ctx context.Context, configID string) (string, error) {
	cfg, err := oauth.LoadConfiguration(ctx, a.repo, configID, types.ProviderMicrosoft)
	if err != nil {
		return "", err
	}
	nonce, err := a.states.IssueNonce(cfg.ID)
	if err != nil {
		return "", err
	}
	state, err := oauth.EncodeState(cfg.ID, nonce)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(a.authorizeEndpoint(cfg.TenantOrCommon()))
	if err != nil {
		return "", apperrors.ErrInternal.WithCause(err)
	}
	q := u.Query()
	q.Set("client_id", cfg.ClientID)
	q.Set("redirect_uri", cfg.RedirectURI)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(scopes, " "))
	q.Set("response_mode", "query")
	q.Set("prompt", "consent")
	q.Set("access_type", "offline")
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

// HandleAuthorizationCallback burns the state nonce, exchanges the code
// and attaches user info. The target configuration comes from the
// decoded state, nothing else.
func (a *Adapter) HandleAuthorizationCallback(ctx context.Context, code, state string) (*types.TokenData, error) {
	if strings.TrimSpace(code) == "" {
		return nil, apperrors.ErrInvalidAuthorizationCode
	}
	st, err := oauth.DecodeState(state)
	if err != nil {
		return nil, err
	}
	if err := a.states.ConsumeNonce(st.ConfigID, st.Nonce); err != nil {
		return nil, err
	}
	cfg, err := oauth.LoadCallbackConfiguration(ctx, a.repo, st.ConfigID, types.ProviderMicrosoft)
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
	// Microsoft expects the scope set repeated on the exchange
	form.Set("scope", strings.Join(scopes, " "))

	status, body, err := oauth.PostForm(ctx, a.http, a.tokenEndpoint(cfg.TenantOrCommon()), form)
	metrics.ObserveProviderRequest("microsoft", "exchange_code", status)
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

// StoreToken persists the exchange result. userEmail prefers the `mail`
// field of the Graph profile and falls back to `userPrincipalName`.
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
	if mail, _ := info["mail"].(string); mail != "" {
		return mail
	}
	upn, _ := info["userPrincipalName"].(string)
	return upn
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
// Microsoft re-issues the refresh token; when a response omits it the
// stored one is kept.
func (a *Adapter) RefreshToken(ctx context.Context, cfg *repository.VendorEmailConfiguration) (*repository.VendorEmailConfiguration, error) {
	if !cfg.HasRefreshToken() {
		return nil, apperrors.ErrNoRefreshToken.WithContext("config_id", cfg.ID)
	}
	updated, err := a.guard.Do(cfg.ID, func() (*repository.VendorEmailConfiguration, error) {
		return a.refresh(ctx, cfg)
	})
	metrics.MarkRefresh("microsoft", err == nil)
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

	status, body, err := oauth.PostForm(ctx, a.http, a.tokenEndpoint(cfg.TenantOrCommon()), form)
	metrics.ObserveProviderRequest("microsoft", "refresh_token", status)
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
		RefreshToken: tr.RefreshToken,
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
// send attempt against Graph sendMail. The valid-token check runs here
// even when the caller already did it; on a fresh token it is a no-op,
// so there is never a double refresh.
func (a *Adapter) SendEmail(ctx context.Context, cfg *repository.VendorEmailConfiguration, msg *types.EmailMessage) (bool, error) {
	if err := validation.ValidateMessage(msg, maxMessageBytes); err != nil {
		return false, err
	}

	start := time.Now()
	defer func() {
		metrics.EmailSendDuration.WithLabelValues(string(types.ProviderMicrosoft)).Observe(time.Since(start).Seconds())
	}()

	cfg, err := a.GetValidToken(ctx, cfg)
	if err != nil {
		return false, err
	}

	payload := buildSendMailRequest(msg)
	status, body, err := oauth.PostJSONBearer(ctx, a.http, a.sendMailEndpoint(), *cfg.AccessToken, payload)
	metrics.ObserveProviderRequest("microsoft", "send_email", status)
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

// GetUserInfo returns the raw Graph /me JSON, unmodified.
func (a *Adapter) GetUserInfo(ctx context.Context, accessToken string) (map[string]any, error) {
	status, body, err := oauth.GetBearer(ctx, a.http, a.meEndpoint(), accessToken)
	metrics.ObserveProviderRequest("microsoft", "get_user_info", status)
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

// ValidateToken probes the Graph /me endpoint. Every failure is false.
func (a *Adapter) ValidateToken(ctx context.Context, accessToken string) bool {
	if strings.TrimSpace(accessToken) == "" {
		return false
	}
	_, err := a.GetUserInfo(ctx, accessToken)
	return err == nil
}

// RevokeToken simulates revocation: Microsoft exposes no user-delegated
// revoke endpoint, so the stored token fields are cleared locally and
// the result is true regardless of any network condition. The provider
// side token may stay live until natural expiry.
func (a *Adapter) RevokeToken(ctx context.Context, cfg *repository.VendorEmailConfiguration) (bool, error) {
	if _, err := a.repo.ClearTokens(ctx, cfg.ID); err != nil {
		return false, apperrors.ErrInternal.WithCause(err).WithContext("config_id", cfg.ID)
	}
	a.log.Info("token revoked locally", logger.ConfigID(cfg.ID))
	return true, nil
}
