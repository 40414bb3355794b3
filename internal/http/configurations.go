package http

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/mailjohn/internal/domain/repository"
	"github.com/dropDatabas3/mailjohn/internal/domain/types"
	apperrors "github.com/dropDatabas3/mailjohn/internal/errors"
	"github.com/dropDatabas3/mailjohn/internal/oauth"
	"github.com/dropDatabas3/mailjohn/internal/observability/logger"
	"github.com/dropDatabas3/mailjohn/internal/rate"
)

// ConfigurationsHandler expone el ciclo de vida completo de una
// configuración: alta, autorización OAuth, envío, refresh y revocación.
// Toda la lógica de proveedor vive en los adapters; acá sólo se resuelve
// el adapter por registry y se traduce entre HTTP y dominio.
type ConfigurationsHandler struct {
	Repo     repository.ConfigurationRepository
	Registry *oauth.Registry
	Quota    rate.Limiter

	// AdminKeyHash es el hash bcrypt de la clave de administración.
	// Vacío deja las rutas admin abiertas (desarrollo).
	AdminKeyHash string
}

func (h *ConfigurationsHandler) Register(r chi.Router) {
	admin := RequireAdminKey(h.AdminKeyHash)

	r.Route("/v1/configurations", func(r chi.Router) {
		r.With(admin).Post("/", h.create)
		r.Get("/", h.list)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.get)
			r.With(admin).Delete("/", h.delete)

			r.Get("/auth-url", h.authURL)
			r.Get("/callback", h.callback)
			r.Post("/send", h.send)
			r.With(admin).Post("/refresh", h.refresh)
			r.With(admin).Post("/revoke", h.revoke)
			r.Get("/userinfo", h.userInfo)
			r.Get("/token/validate", h.validateToken)
		})
	})
}

// load trae la configuración del path sin expectativa de proveedor.
func (h *ConfigurationsHandler) load(r *http.Request) (*repository.VendorEmailConfiguration, error) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		return nil, apperrors.ErrConfigurationNotFound
	}
	cfg, err := h.Repo.GetByID(r.Context(), id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.ErrConfigurationNotFound.WithContext("config_id", id)
		}
		return nil, apperrors.ErrInternal.WithCause(err).WithContext("config_id", id)
	}
	return cfg, nil
}

// resolve trae configuración y adapter juntos; el adapter sale del
// registry según el proveedor almacenado.
func (h *ConfigurationsHandler) resolve(r *http.Request) (*repository.VendorEmailConfiguration, oauth.Adapter, error) {
	cfg, err := h.load(r)
	if err != nil {
		return nil, nil, err
	}
	ad, err := h.Registry.ResolveFromConfiguration(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, ad, nil
}

// quotaOr429 corta el request con 429 y Retry-After si la configuración
// agotó su ventana de envíos. Un limiter caído no bloquea el envío: se
// loguea y se deja pasar.
func (h *ConfigurationsHandler) quotaOr429(w http.ResponseWriter, r *http.Request, key string) bool {
	if h.Quota == nil {
		return false
	}
	res, err := h.Quota.Allow(r.Context(), key)
	if err != nil {
		logger.From(r.Context()).Warn("send quota check failed, allowing",
			logger.ConfigID(key),
			logger.Err(err),
		)
		return false
	}
	if res.Allowed {
		return false
	}
	if res.RetryAfter > 0 {
		secs := int(math.Ceil(res.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	apperrors.WriteError(w, apperrors.ErrSendLimitExceeded.WithContext("config_id", key))
	return true
}

// --- Alta / consulta ---

func (h *ConfigurationsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createConfigurationRequest
	if !readJSON(w, r, &req, maxJSONBody) {
		return
	}

	provider := types.ParseProvider(req.Provider)
	if provider == "" {
		apperrors.WriteError(w, apperrors.ErrInvalidProvider.
			WithDetail("provider debe ser google o microsoft").
			WithContext("provider", req.Provider))
		return
	}

	ad, err := h.Registry.Resolve(string(provider))
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}

	cfg, err := ad.StoreConfiguration(r.Context(), oauth.ConfigurationInput{
		VendorID:     req.VendorID,
		LocationID:   req.LocationID,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		TenantID:     req.TenantID,
		RedirectURI:  req.RedirectURI,
		UserEmail:    req.UserEmail,
	})
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}

	logger.From(r.Context()).Info("configuration created",
		logger.ConfigID(cfg.ID),
		logger.Provider(string(cfg.Provider)),
		logger.VendorID(cfg.VendorID),
		logger.LocationID(cfg.LocationID),
	)
	writeJSON(w, http.StatusCreated, toConfigurationResponse(cfg))
}

func (h *ConfigurationsHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	vendorID, err := strconv.Atoi(strings.TrimSpace(q.Get("vendorId")))
	if err != nil || vendorID < 1 {
		apperrors.WriteError(w, apperrors.New(http.StatusBadRequest, "invalid_query",
			"vendorId es requerido y debe ser un entero positivo."))
		return
	}
	locationID := 0
	if raw := strings.TrimSpace(q.Get("locationId")); raw != "" {
		locationID, err = strconv.Atoi(raw)
		if err != nil || locationID < 1 {
			apperrors.WriteError(w, apperrors.New(http.StatusBadRequest, "invalid_query",
				"locationId debe ser un entero positivo."))
			return
		}
	}

	cfgs, err := h.Repo.List(r.Context(), vendorID, locationID)
	if err != nil {
		apperrors.WriteError(w, apperrors.ErrInternal.WithCause(err))
		return
	}

	resp := listConfigurationsResponse{Configurations: []configurationResponse{}}
	for _, cfg := range cfgs {
		resp.Configurations = append(resp.Configurations, toConfigurationResponse(cfg))
	}
	resp.Count = len(resp.Configurations)
	writeJSON(w, http.StatusOK, resp)
}

func (h *ConfigurationsHandler) get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.load(r)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConfigurationResponse(cfg))
}

func (h *ConfigurationsHandler) delete(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.load(r)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	if err := h.Repo.SoftDelete(r.Context(), cfg.ID); err != nil {
		if repository.IsNotFound(err) {
			apperrors.WriteError(w, apperrors.ErrConfigurationNotFound.WithContext("config_id", cfg.ID))
			return
		}
		apperrors.WriteError(w, apperrors.ErrInternal.WithCause(err).WithContext("config_id", cfg.ID))
		return
	}
	logger.From(r.Context()).Info("configuration deleted", logger.ConfigID(cfg.ID))
	w.WriteHeader(http.StatusNoContent)
}

// --- Flujo de autorización ---

func (h *ConfigurationsHandler) authURL(w http.ResponseWriter, r *http.Request) {
	cfg, ad, err := h.resolve(r)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	u, err := ad.GetAuthorizationURL(r.Context(), cfg.ID)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authURLResponse{AuthorizationURL: u})
}

// callback recibe el redirect del proveedor. La configuración del path
// elige el adapter; la configuración a actualizar sale únicamente del
// state, que el adapter ya validó.
func (h *ConfigurationsHandler) callback(w http.ResponseWriter, r *http.Request) {
	_, ad, err := h.resolve(r)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}

	q := r.URL.Query()
	if pErr := q.Get("error"); pErr != "" {
		detail := pErr
		if desc := q.Get("error_description"); desc != "" {
			detail = pErr + ": " + desc
		}
		logger.From(r.Context()).Warn("provider denied authorization",
			logger.Provider(string(ad.Provider())),
			logger.String("provider_error", pErr),
		)
		apperrors.WriteError(w, apperrors.ErrInvalidAuthorizationCode.WithDetail(detail))
		return
	}

	code := q.Get("code")
	state := q.Get("state")

	td, err := ad.HandleAuthorizationCallback(r.Context(), code, state)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}

	st, err := oauth.DecodeState(state)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	target, err := oauth.LoadCallbackConfiguration(r.Context(), h.Repo, st.ConfigID, ad.Provider())
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}

	updated, err := ad.StoreToken(r.Context(), target, td)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}

	logger.From(r.Context()).Info("authorization completed",
		logger.ConfigID(updated.ID),
		logger.Provider(string(updated.Provider)),
		logger.HasToken("has_refresh_token", updated.HasRefreshToken()),
	)
	writeJSON(w, http.StatusOK, toTokenSummaryResponse(updated))
}

// --- Operaciones de token / envío ---

func (h *ConfigurationsHandler) send(w http.ResponseWriter, r *http.Request) {
	cfg, ad, err := h.resolve(r)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}

	if h.quotaOr429(w, r, cfg.ID) {
		return
	}

	var req sendEmailRequest
	if !readJSON(w, r, &req, maxSendBody) {
		return
	}

	start := time.Now()
	sent, err := ad.SendEmail(r.Context(), cfg, req.toMessage())
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}

	logger.From(r.Context()).Info("email sent",
		logger.ConfigID(cfg.ID),
		logger.Provider(string(cfg.Provider)),
		logger.DurationMs(time.Since(start).Milliseconds()),
	)
	writeJSON(w, http.StatusOK, sendEmailResponse{
		Sent:    sent,
		To:      req.To,
		Subject: req.Subject,
		SentAt:  time.Now().UTC(),
	})
}

func (h *ConfigurationsHandler) refresh(w http.ResponseWriter, r *http.Request) {
	cfg, ad, err := h.resolve(r)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	updated, err := ad.RefreshToken(r.Context(), cfg)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokenSummaryResponse(updated))
}

func (h *ConfigurationsHandler) revoke(w http.ResponseWriter, r *http.Request) {
	cfg, ad, err := h.resolve(r)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	revoked, err := ad.RevokeToken(r.Context(), cfg)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	logger.From(r.Context()).Info("token revoked",
		logger.ConfigID(cfg.ID),
		logger.Provider(string(cfg.Provider)),
		logger.Bool("revoked", revoked),
	)
	writeJSON(w, http.StatusOK, revokeResponse{Revoked: revoked})
}

func (h *ConfigurationsHandler) userInfo(w http.ResponseWriter, r *http.Request) {
	cfg, ad, err := h.resolve(r)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	fresh, err := ad.GetValidToken(r.Context(), cfg)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	info, err := ad.GetUserInfo(r.Context(), *fresh.AccessToken)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// validateToken sondea el token ALMACENADO tal cual está, sin refresh:
// es un chequeo de estado, no una operación de uso.
func (h *ConfigurationsHandler) validateToken(w http.ResponseWriter, r *http.Request) {
	cfg, ad, err := h.resolve(r)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	if !cfg.HasAccessToken() {
		writeJSON(w, http.StatusOK, validateTokenResponse{Valid: false})
		return
	}
	valid := ad.ValidateToken(r.Context(), *cfg.AccessToken)
	writeJSON(w, http.StatusOK, validateTokenResponse{Valid: valid})
}
