package errors

import (
	"fmt"
	"net/http"
)

// Kind clasifica los errores de la aplicación en familias de alto nivel.
type Kind string

const (
	// KindOAuth cubre todo el ciclo de vida de autorización/tokens.
	KindOAuth Kind = "oauth"
	// KindEmail cubre construcción, validación y transmisión de correos.
	KindEmail Kind = "email"
	// KindInternal cubre errores de entrada del caller e infraestructura.
	KindInternal Kind = "internal"
)

// AppError define la estructura estándar para errores de la aplicación.
// Cada error lleva mensaje humano, status HTTP, sub-código de máquina y
// contexto estructurado opcional.
type AppError struct {
	Kind       Kind           `json:"kind"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Detail     string         `json:"detail,omitempty"`
	HTTPStatus int            `json:"-"` // No se serializa, usado para el header
	Context    map[string]any `json:"-"` // Contexto para logs, no se expone al cliente
	Err        error          `json:"-"` // Causa original, útil para logs
}

// Error implementa la interfaz error.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s/%s] %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s/%s] %s", e.Kind, e.Code, e.Message)
}

// Unwrap permite acceder al error original.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewOAuth crea un error del ciclo OAuth.
func NewOAuth(status int, code, message string) *AppError {
	return &AppError{Kind: KindOAuth, Code: code, Message: message, HTTPStatus: status}
}

// NewEmail crea un error de la capa de correo.
func NewEmail(status int, code, message string) *AppError {
	return &AppError{Kind: KindEmail, Code: code, Message: message, HTTPStatus: status}
}

// New crea un error no categorizado (caller/infraestructura).
func New(status int, code, message string) *AppError {
	return &AppError{Kind: KindInternal, Code: code, Message: message, HTTPStatus: status}
}

// Wrap crea un AppError envolviendo un error existente.
func Wrap(err error, kind Kind, status int, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, HTTPStatus: status, Err: err}
}

// FromError intenta convertir un error genérico en un AppError.
// Si no es un AppError, devuelve un error interno genérico conservando la causa.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternal.WithCause(err)
}

// WithDetail agrega detalle adicional al error (útil para validaciones).
// Devuelve una COPIA para no mutar las variables globales base.
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := e.clone()
	newErr.Detail = detail
	return newErr
}

// WithCause agrega el error original (causa). Devuelve una COPIA.
func (e *AppError) WithCause(err error) *AppError {
	newErr := e.clone()
	newErr.Err = err
	return newErr
}

// WithContext agrega un par clave/valor de contexto. Devuelve una COPIA.
// Nunca poner secretos (tokens, client_secret) como valor; sólo presencia.
func (e *AppError) WithContext(key string, value any) *AppError {
	newErr := e.clone()
	if newErr.Context == nil {
		newErr.Context = make(map[string]any, 1)
	}
	newErr.Context[key] = value
	return newErr
}

// WithStatus reemplaza el status HTTP (p.ej. para propagar el status del
// proveedor en fallos de exchange/refresh). Devuelve una COPIA.
func (e *AppError) WithStatus(status int) *AppError {
	newErr := e.clone()
	newErr.HTTPStatus = status
	return newErr
}

func (e *AppError) clone() *AppError {
	newErr := *e
	if e.Context != nil {
		ctx := make(map[string]any, len(e.Context))
		for k, v := range e.Context {
			ctx[k] = v
		}
		newErr.Context = ctx
	}
	return &newErr
}

// IsKind reporta si err es un AppError de la familia dada.
func IsKind(err error, kind Kind) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Kind == kind
}

// CodeOf devuelve el sub-código del error, o "" si no es un AppError.
func CodeOf(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ""
}

// StatusOf devuelve el status HTTP del error, 500 si no es un AppError.
func StatusOf(err error) int {
	if appErr, ok := err.(*AppError); ok && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
