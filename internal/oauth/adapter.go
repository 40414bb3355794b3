// Package oauth defines the uniform provider contract for the token
// lifecycle engine: one Adapter interface implemented per provider,
// a registry for name-based dispatch, the state codec shared by the
// authorization redirects, and the helpers both adapters lean on
// (configuration loading, token persistence, transport error mapping).
package oauth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/mailjohn/internal/domain/repository"
	"github.com/dropDatabas3/mailjohn/internal/domain/types"
	apperrors "github.com/dropDatabas3/mailjohn/internal/errors"
	"github.com/dropDatabas3/mailjohn/internal/validation"
)

// Adapter is the uniform OAuth+email contract. Both providers implement
// the full set; callers pick an implementation through the Registry and
// never branch on provider identity themselves.
type Adapter interface {
	// Provider reports the identity this adapter serves.
	Provider() types.Provider

	// StoreConfiguration validates and persists a new configuration with
	// provider fixed to this adapter's identity. Tokens are left unset and
	// no network call is made.
	StoreConfiguration(ctx context.Context, in ConfigurationInput) (*repository.VendorEmailConfiguration, error)

	// GetAuthorizationURL builds the provider authorize URL for the stored
	// configuration. Pure construction, no side effects.
	GetAuthorizationURL(ctx context.Context, configID string) (string, error)

	// HandleAuthorizationCallback exchanges the authorization code for
	// tokens. The configuration to update is determined exclusively from
	// the decoded state. User info is fetched with the fresh access token
	// and attached before returning; a user-info failure fails the whole
	// callback so no unattributable token is ever stored.
	HandleAuthorizationCallback(ctx context.Context, code, state string) (*types.TokenData, error)

	// StoreToken persists the exchange result: access token, refresh token
	// (previous one retained when the response omitted it), expiresIn,
	// expiresAt derived at store time, and userEmail from the embedded
	// user info. Atomic: all fields or none.
	StoreToken(ctx context.Context, cfg *repository.VendorEmailConfiguration, td *types.TokenData) (*repository.VendorEmailConfiguration, error)

	// GetValidToken returns the configuration with a token guaranteed
	// usable for at least the expiry lookahead window, refreshing first
	// when needed. Fresh tokens pass through untouched.
	GetValidToken(ctx context.Context, cfg *repository.VendorEmailConfiguration) (*repository.VendorEmailConfiguration, error)

	// RefreshToken trades the stored refresh token for a new access token
	// and persists the result. Absent refresh token is terminal: the full
	// authorization flow must be redone.
	RefreshToken(ctx context.Context, cfg *repository.VendorEmailConfiguration) (*repository.VendorEmailConfiguration, error)

	// SendEmail validates the message, ensures a valid token and performs
	// exactly one send attempt against the provider. True only on a
	// provider-confirmed 2xx.
	SendEmail(ctx context.Context, cfg *repository.VendorEmailConfiguration, msg *types.EmailMessage) (bool, error)

	// GetUserInfo fetches the provider profile with a bearer token and
	// returns the raw JSON unmodified. Field names are provider-specific.
	GetUserInfo(ctx context.Context, accessToken string) (map[string]any, error)

	// ValidateToken probes the profile endpoint and collapses every
	// failure to false. The only error-swallowing operation here.
	ValidateToken(ctx context.Context, accessToken string) bool

	// RevokeToken revokes provider-side where an endpoint exists (Google)
	// and clears the stored token fields. Best effort: provider failure
	// yields false, not an error.
	RevokeToken(ctx context.Context, cfg *repository.VendorEmailConfiguration) (bool, error)
}

// ConfigurationInput carries the caller-supplied fields for
// StoreConfiguration. Provider is not here: the adapter fixes it.
type ConfigurationInput struct {
	VendorID     int
	LocationID   int
	ClientID     string
	ClientSecret string
	TenantID     string // Microsoft only; empty means "common"
	RedirectURI  string
	UserEmail    string // optional
}

// ValidateConfigurationInput checks the input before any write.
func ValidateConfigurationInput(in ConfigurationInput) error {
	if in.VendorID < 1 {
		return apperrors.ErrInvalidConfiguration.
			WithDetail("vendorId debe ser un entero positivo").
			WithContext("field", "vendorId")
	}
	if in.LocationID < 1 {
		return apperrors.ErrInvalidConfiguration.
			WithDetail("locationId debe ser un entero positivo").
			WithContext("field", "locationId")
	}
	if strings.TrimSpace(in.ClientID) == "" {
		return apperrors.ErrInvalidConfiguration.
			WithDetail("clientId es requerido").
			WithContext("field", "clientId")
	}
	if strings.TrimSpace(in.ClientSecret) == "" {
		return apperrors.ErrInvalidConfiguration.
			WithDetail("clientSecret es requerido").
			WithContext("field", "clientSecret")
	}
	u, err := url.ParseRequestURI(strings.TrimSpace(in.RedirectURI))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return apperrors.ErrInvalidConfiguration.
			WithDetail("redirectUri debe ser una URL absoluta").
			WithContext("field", "redirectUri")
	}
	if in.UserEmail != "" && !validation.ValidAddress(in.UserEmail) {
		return apperrors.ErrInvalidConfiguration.
			WithDetail("userEmail no es una dirección válida").
			WithContext("field", "userEmail")
	}
	return nil
}

// NewConfiguration validates the input and builds the entity to persist
// for the given provider. Tokens stay unset.
func NewConfiguration(in ConfigurationInput, p types.Provider) (*repository.VendorEmailConfiguration, error) {
	if err := ValidateConfigurationInput(in); err != nil {
		return nil, err
	}
	cfg := &repository.VendorEmailConfiguration{
		VendorID:     in.VendorID,
		LocationID:   in.LocationID,
		Provider:     p,
		ClientID:     strings.TrimSpace(in.ClientID),
		ClientSecret: in.ClientSecret,
		TenantID:     strings.TrimSpace(in.TenantID),
		RedirectURI:  strings.TrimSpace(in.RedirectURI),
	}
	if in.UserEmail != "" {
		email := in.UserEmail
		cfg.UserEmail = &email
	}
	return cfg, nil
}

// LoadConfiguration fetches a configuration owned by the given provider.
// Missing or soft-deleted rows surface as configuration_not_found;
// a provider mismatch surfaces as invalid_configuration.
func LoadConfiguration(ctx context.Context, repo repository.ConfigurationRepository, id string, want types.Provider) (*repository.VendorEmailConfiguration, error) {
	cfg, err := repo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.ErrConfigurationNotFound.WithContext("config_id", id)
		}
		return nil, apperrors.ErrInternal.WithCause(err).WithContext("config_id", id)
	}
	if cfg.Provider != want {
		return nil, apperrors.ErrInvalidConfiguration.
			WithDetail("la configuración pertenece a otro proveedor").
			WithContext("config_id", id).
			WithContext("provider", string(cfg.Provider))
	}
	return cfg, nil
}

// LoadCallbackConfiguration is LoadConfiguration with the callback's
// failure mapping: a missing row is invalid_configuration, because at
// callback time the id came from the state blob, not from the caller.
func LoadCallbackConfiguration(ctx context.Context, repo repository.ConfigurationRepository, id string, want types.Provider) (*repository.VendorEmailConfiguration, error) {
	cfg, err := repo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.ErrInvalidConfiguration.
				WithDetail("el state no referencia una configuración existente").
				WithContext("config_id", id)
		}
		return nil, apperrors.ErrInternal.WithCause(err).WithContext("config_id", id)
	}
	if cfg.Provider != want {
		return nil, apperrors.ErrInvalidConfiguration.
			WithDetail("la configuración pertenece a otro proveedor").
			WithContext("config_id", id).
			WithContext("provider", string(cfg.Provider))
	}
	return cfg, nil
}

// PersistToken writes the token fields from a provider response.
// The refresh token is only replaced when the response carried one;
// expiresAt is always derived here, never caller-supplied. failCode
// tags the wrapping error (exchange vs refresh path).
func PersistToken(ctx context.Context, repo repository.ConfigurationRepository, cfg *repository.VendorEmailConfiguration, td *types.TokenData, userEmail, failCode string) (*repository.VendorEmailConfiguration, error) {
	now := time.Now().UTC()
	upd := repository.TokenUpdate{
		AccessToken: td.AccessToken,
		ExpiresIn:   td.ExpiresIn,
		ExpiresAt:   now.Add(time.Duration(td.ExpiresIn) * time.Second),
	}
	if td.RefreshToken != "" {
		rt := td.RefreshToken
		upd.RefreshToken = &rt
	}
	if userEmail != "" {
		email := userEmail
		upd.UserEmail = &email
	}
	updated, err := repo.UpdateTokens(ctx, cfg.ID, upd)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindOAuth, http.StatusInternalServerError,
			failCode, "No se pudo persistir el token.")
	}
	return updated, nil
}
