package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Colectores del motor OAuth. Se exponen como vars para que adapters y
// handlers incrementen directo; Register tolera doble registro.
var (
	ProviderRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_requests_total",
		Help: "HTTP requests contra el proveedor OAuth, por operacion y status.",
	}, []string{"provider", "op", "code"})

	TokenRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "token_refresh_total",
		Help: "Refrescos de access token, por resultado (ok|error).",
	}, []string{"provider", "outcome"})

	EmailSendDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "email_send_duration_seconds",
		Help:    "Latencia del envio de correo, incluye refresh previo si aplica.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
)

// Register registra los colectores en reg. Idempotente: si el colector ya
// estaba registrado no es error.
func Register(reg prometheus.Registerer) error {
	cs := []prometheus.Collector{ProviderRequests, TokenRefreshes, EmailSendDuration}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// MustRegister es Register con panic, para main().
func MustRegister(reg prometheus.Registerer) {
	if err := Register(reg); err != nil {
		panic(err)
	}
}

// ObserveProviderRequest marca una llamada HTTP al proveedor.
func ObserveProviderRequest(provider, op string, status int) {
	ProviderRequests.WithLabelValues(provider, op, strconv.Itoa(status)).Inc()
}

// MarkRefresh marca el resultado de un refresh.
func MarkRefresh(provider string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	TokenRefreshes.WithLabelValues(provider, outcome).Inc()
}
