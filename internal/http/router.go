package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/mailjohn/internal/domain/repository"
	"github.com/dropDatabas3/mailjohn/internal/oauth"
	"github.com/dropDatabas3/mailjohn/internal/rate"
)

// RouterConfig junta las dependencias del router. Metrics es el handler
// de /metrics ya armado (promhttp sobre el registry del proceso); nil lo
// deshabilita.
type RouterConfig struct {
	Repo         repository.ConfigurationRepository
	Registry     *oauth.Registry
	Quota        rate.Limiter
	AdminKeyHash string
	Metrics      http.Handler
}

// NewRouter arma el router completo: middlewares globales, health checks
// y el árbol /v1/configurations.
func NewRouter(rc RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(WithRequestID())
	r.Use(WithLogging())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := rc.Repo.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if rc.Metrics != nil {
		r.Handle("/metrics", rc.Metrics)
	}

	h := &ConfigurationsHandler{
		Repo:         rc.Repo,
		Registry:     rc.Registry,
		Quota:        rc.Quota,
		AdminKeyHash: rc.AdminKeyHash,
	}
	h.Register(r)

	return r
}
