package http

import (
	"time"

	"github.com/dropDatabas3/mailjohn/internal/domain/repository"
	"github.com/dropDatabas3/mailjohn/internal/domain/types"
)

// DTOs de la API pública. La entidad persistida jamás se serializa
// directa: clientSecret, accessToken y refreshToken no tienen campo
// aquí, sólo booleanos de presencia.

type createConfigurationRequest struct {
	VendorID     int    `json:"vendorId"`
	LocationID   int    `json:"locationId"`
	Provider     string `json:"provider"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	TenantID     string `json:"tenantId,omitempty"`
	RedirectURI  string `json:"redirectUri"`
	UserEmail    string `json:"userEmail,omitempty"`
}

type configurationResponse struct {
	ID              string     `json:"id"`
	VendorID        int        `json:"vendorId"`
	LocationID      int        `json:"locationId"`
	Provider        string     `json:"provider"`
	ClientID        string     `json:"clientId"`
	TenantID        string     `json:"tenantId,omitempty"`
	RedirectURI     string     `json:"redirectUri"`
	UserEmail       string     `json:"userEmail,omitempty"`
	HasAccessToken  bool       `json:"hasAccessToken"`
	HasRefreshToken bool       `json:"hasRefreshToken"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func toConfigurationResponse(cfg *repository.VendorEmailConfiguration) configurationResponse {
	resp := configurationResponse{
		ID:              cfg.ID,
		VendorID:        cfg.VendorID,
		LocationID:      cfg.LocationID,
		Provider:        string(cfg.Provider),
		ClientID:        cfg.ClientID,
		TenantID:        cfg.TenantID,
		RedirectURI:     cfg.RedirectURI,
		HasAccessToken:  cfg.HasAccessToken(),
		HasRefreshToken: cfg.HasRefreshToken(),
		ExpiresAt:       cfg.ExpiresAt,
		CreatedAt:       cfg.CreatedAt,
		UpdatedAt:       cfg.UpdatedAt,
	}
	if cfg.UserEmail != nil {
		resp.UserEmail = *cfg.UserEmail
	}
	return resp
}

type listConfigurationsResponse struct {
	Configurations []configurationResponse `json:"configurations"`
	Count          int                     `json:"count"`
}

type authURLResponse struct {
	AuthorizationURL string `json:"authorizationUrl"`
}

// tokenSummaryResponse resume el resultado de callback y refresh.
type tokenSummaryResponse struct {
	ConfigID        string     `json:"configId"`
	Provider        string     `json:"provider"`
	UserEmail       string     `json:"userEmail,omitempty"`
	HasRefreshToken bool       `json:"hasRefreshToken"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
}

func toTokenSummaryResponse(cfg *repository.VendorEmailConfiguration) tokenSummaryResponse {
	resp := tokenSummaryResponse{
		ConfigID:        cfg.ID,
		Provider:        string(cfg.Provider),
		HasRefreshToken: cfg.HasRefreshToken(),
		ExpiresAt:       cfg.ExpiresAt,
	}
	if cfg.UserEmail != nil {
		resp.UserEmail = *cfg.UserEmail
	}
	return resp
}

type attachmentInput struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Content  string `json:"content"` // base64 estándar
}

type sendEmailRequest struct {
	To          string            `json:"to"`
	Cc          []string          `json:"cc,omitempty"`
	Bcc         []string          `json:"bcc,omitempty"`
	Subject     string            `json:"subject"`
	ContentType string            `json:"contentType,omitempty"`
	Content     string            `json:"content"`
	Attachments []attachmentInput `json:"attachments,omitempty"`
}

func (req *sendEmailRequest) toMessage() *types.EmailMessage {
	msg := &types.EmailMessage{
		To:          req.To,
		Cc:          req.Cc,
		Bcc:         req.Bcc,
		Subject:     req.Subject,
		ContentType: req.ContentType,
		Content:     req.Content,
	}
	for _, a := range req.Attachments {
		msg.Attachments = append(msg.Attachments, types.Attachment{
			Filename: a.Filename,
			MimeType: a.MimeType,
			Content:  a.Content,
		})
	}
	return msg
}

type sendEmailResponse struct {
	Sent    bool      `json:"sent"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	SentAt  time.Time `json:"sentAt"`
}

type revokeResponse struct {
	Revoked bool `json:"revoked"`
}

type validateTokenResponse struct {
	Valid bool `json:"valid"`
}
