package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/dropDatabas3/mailjohn/internal/errors"
	"github.com/dropDatabas3/mailjohn/internal/observability/logger"
)

// Middleware es un decorador de http.Handler
type Middleware func(http.Handler) http.Handler

// Chain aplica middlewares en orden de izquierda a derecha.
// Chain(h, A, B, C) ejecuta: A -> B -> C -> h
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// =================================================================================
// REQUEST ID
// =================================================================================

type ctxRequestIDKey struct{}

// WithRequestID genera o propaga un Request ID único para cada request.
// Si el cliente envía X-Request-ID, lo usa. Si no, genera un UUID nuevo.
// El ID se expone en el header de respuesta y se inyecta en el contexto.
func WithRequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
			if rid == "" {
				rid = uuid.NewString()
			}

			w.Header().Set("X-Request-ID", rid)

			ctx := context.WithValue(r.Context(), ctxRequestIDKey{}, rid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID obtiene el request ID del contexto ("" si no hay).
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(ctxRequestIDKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// =================================================================================
// LOGGING
// =================================================================================

// statusRecorder captura el status code y bytes escritos de la respuesta.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.wroteHeader {
		return
	}
	s.status = code
	s.wroteHeader = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.status = http.StatusOK
		s.wroteHeader = true
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// WithLogging registra cada request con el logger singleton y campos
// estructurados, e inyecta un logger scoped (request_id, method, path)
// en el contexto para uso de handlers y adapters.
//
// Ejemplo (prod):
//
//	{"level":"info","msg":"request completed","request_id":"...","method":"POST","path":"/v1/configurations","status":201,"bytes":412,"duration_ms":12}
func WithLogging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := w.Header().Get("X-Request-ID")
			if requestID == "" {
				requestID = GetRequestID(r.Context())
			}

			reqLog := logger.L().With(
				logger.RequestID(requestID),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
			)

			ctx := logger.ToContext(r.Context(), reqLog)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r.WithContext(ctx))

			dur := time.Since(start)

			// Nivel según status code
			switch {
			case rec.status >= 500:
				reqLog.Error("request failed",
					logger.Status(rec.status),
					logger.Bytes(rec.bytes),
					logger.DurationMs(dur.Milliseconds()),
				)
			case rec.status >= 400:
				reqLog.Warn("request completed with client error",
					logger.Status(rec.status),
					logger.Bytes(rec.bytes),
					logger.DurationMs(dur.Milliseconds()),
				)
			default:
				reqLog.Info("request completed",
					logger.Status(rec.status),
					logger.Bytes(rec.bytes),
					logger.DurationMs(dur.Milliseconds()),
				)
			}
		})
	}
}

// =================================================================================
// ADMIN KEY
// =================================================================================

// RequireAdminKey protege operaciones administrativas comparando el header
// X-Admin-API-Key contra un hash bcrypt. Con hash vacío no exige nada
// (modo desarrollo). El valor de la clave nunca se loguea.
func RequireAdminKey(hash string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.TrimSpace(hash) == "" {
				next.ServeHTTP(w, r)
				return
			}

			key := strings.TrimSpace(r.Header.Get("X-Admin-API-Key"))
			if key == "" {
				apperrors.WriteError(w, apperrors.ErrUnauthorized.
					WithDetail("falta el header X-Admin-API-Key"))
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
				logger.From(r.Context()).Warn("admin key rejected",
					logger.Path(r.URL.Path),
				)
				apperrors.WriteError(w, apperrors.ErrUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
