package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/dropDatabas3/mailjohn/internal/errors"
)

const (
	// maxJSONBody limita los bodies de configuración y operaciones chicas.
	maxJSONBody = 64 << 10 // 64KB

	// maxSendBody limita el body de envío: los adjuntos viajan en base64,
	// así que 25MB crudos del proveedor más permisivo caben holgados en 36MB.
	maxSendBody = 36 << 20
)

// readJSON decodifica el body en dst con decodificación estricta:
// Content-Type application/json, campos desconocidos rechazados y sin
// datos extra después del documento. Escribe la respuesta de error y
// retorna false si el body no pasa.
func readJSON(w http.ResponseWriter, r *http.Request, dst any, limit int64) bool {
	ct := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))
	if !strings.Contains(ct, "application/json") {
		apperrors.WriteError(w, apperrors.ErrInvalidJSON.
			WithStatus(http.StatusUnsupportedMediaType).
			WithDetail("se requiere Content-Type: application/json"))
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apperrors.WriteError(w, apperrors.ErrInvalidJSON.
				WithStatus(http.StatusRequestEntityTooLarge).
				WithDetail("el body excede el tamaño máximo"))
			return false
		}
		detail := "json inválido"
		if errors.Is(err, io.EOF) {
			detail = "body vacío"
		}
		apperrors.WriteError(w, apperrors.ErrInvalidJSON.WithDetail(detail))
		return false
	}

	// No debe haber datos extra
	if dec.More() {
		apperrors.WriteError(w, apperrors.ErrInvalidJSON.WithDetail("sobran datos en el body"))
		return false
	}

	return true
}

// writeJSON serializa v con el status dado.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
