package repository

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/mailjohn/internal/domain/types"
)

// TokenExpiryLookahead es la ventana fija de anticipación: un token que
// expira dentro de esta ventana se trata como expirado y se renueva antes
// de usarlo, para evitar que muera a mitad de un request al proveedor.
const TokenExpiryLookahead = 5 * time.Minute

// MicrosoftDefaultTenant se usa cuando una configuración Microsoft no trae tenant.
const MicrosoftDefaultTenant = "common"

// VendorEmailConfiguration es la entidad persistida: un binding
// vendor+location → proveedor, con credenciales OAuth y el triple de tokens
// vigente. Los campos sensibles (ClientSecret, AccessToken, RefreshToken)
// jamás se serializan hacia afuera; los DTOs HTTP definen la forma pública.
type VendorEmailConfiguration struct {
	ID           string
	VendorID     int
	LocationID   int
	Provider     types.Provider // inmutable después de crear
	ClientID     string
	ClientSecret string
	TenantID     string // sólo Microsoft; "common" por defecto
	RedirectURI  string
	UserEmail    *string
	AccessToken  *string
	RefreshToken *string
	ExpiresIn    int // segundos del último grant
	ExpiresAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// HasAccessToken retorna true si hay access token almacenado.
func (c *VendorEmailConfiguration) HasAccessToken() bool {
	return c != nil && c.AccessToken != nil && *c.AccessToken != ""
}

// HasRefreshToken retorna true si hay refresh token almacenado.
func (c *VendorEmailConfiguration) HasRefreshToken() bool {
	return c != nil && c.RefreshToken != nil && *c.RefreshToken != ""
}

// IsExpired retorna true si el token ya expiró.
// Sin ExpiresAt se considera expirado.
func (c *VendorEmailConfiguration) IsExpired() bool {
	if c == nil || c.ExpiresAt == nil {
		return true
	}
	return time.Now().After(*c.ExpiresAt)
}

// IsExpiringSoon retorna true si el token expira dentro de la ventana
// de anticipación (TokenExpiryLookahead).
func (c *VendorEmailConfiguration) IsExpiringSoon() bool {
	if c == nil || c.ExpiresAt == nil {
		return true
	}
	return time.Now().Add(TokenExpiryLookahead).After(*c.ExpiresAt)
}

// TenantOrCommon retorna el tenant Microsoft efectivo.
func (c *VendorEmailConfiguration) TenantOrCommon() string {
	if c == nil {
		return MicrosoftDefaultTenant
	}
	if t := strings.TrimSpace(c.TenantID); t != "" {
		return t
	}
	return MicrosoftDefaultTenant
}

// CreateConfigurationInput contiene los datos para crear una configuración.
// Los tokens quedan sin setear: se poblan recién con StoreToken tras el callback.
type CreateConfigurationInput struct {
	VendorID     int
	LocationID   int
	Provider     types.Provider
	ClientID     string
	ClientSecret string
	TenantID     string
	RedirectURI  string
	UserEmail    *string
}

// TokenUpdate describe una mutación atómica del triple de tokens.
// RefreshToken nil significa "retener el almacenado" (el proveedor puede
// omitirlo en la respuesta y eso nunca debe borrar un refresh token vigente).
// UserEmail nil significa "no tocar".
type TokenUpdate struct {
	AccessToken  string
	RefreshToken *string
	ExpiresIn    int
	ExpiresAt    time.Time
	UserEmail    *string
}

// ConfigurationRepository es el contrato de persistencia de configuraciones.
type ConfigurationRepository interface {
	Ping(ctx context.Context) error

	// Create asigna ID/CreatedAt/UpdatedAt y persiste la configuración.
	Create(ctx context.Context, cfg *VendorEmailConfiguration) error

	// GetByID retorna ErrNotFound si no existe o está soft-deleted.
	GetByID(ctx context.Context, id string) (*VendorEmailConfiguration, error)

	// List filtra por vendor y, si locationID > 0, por location.
	List(ctx context.Context, vendorID, locationID int) ([]*VendorEmailConfiguration, error)

	// UpdateTokens aplica la mutación completa o no aplica nada.
	UpdateTokens(ctx context.Context, id string, upd TokenUpdate) (*VendorEmailConfiguration, error)

	// ClearTokens borra access/refresh/expiry (revocación). No borra la fila.
	ClearTokens(ctx context.Context, id string) (*VendorEmailConfiguration, error)

	// SoftDelete marca deleted_at; la fila deja de ser visible para lookups.
	SoftDelete(ctx context.Context, id string) error

	Close() error
}
