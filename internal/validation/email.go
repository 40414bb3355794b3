// Package validation valida mensajes de correo antes de cualquier I/O.
package validation

import (
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"

	"github.com/dropDatabas3/mailjohn/internal/domain/types"
	apperrors "github.com/dropDatabas3/mailjohn/internal/errors"
)

// ValidAddress retorna true si s es una dirección de correo sintácticamente
// válida (RFC 5322, sin display name).
func ValidAddress(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	// Rechazar formas con display name ("X <a@b>"): la API espera la dirección pelada.
	return addr.Address == s
}

// ValidateMessage aplica las reglas de validación compartidas por ambos
// proveedores. Falla rápido: el primer problema corta, antes de cualquier
// llamada de red o persistencia.
//
// maxBytes es el límite de adjuntos del proveedor (0 = sin límite).
func ValidateMessage(msg *types.EmailMessage, maxBytes int64) error {
	if msg == nil {
		return apperrors.ErrInvalidRecipient
	}

	to := strings.TrimSpace(msg.To)
	if to == "" {
		return apperrors.ErrInvalidRecipient
	}
	if !ValidAddress(to) {
		return invalidFormat("to", to)
	}

	if strings.TrimSpace(msg.Subject) == "" {
		return apperrors.ErrEmptySubject
	}
	if strings.TrimSpace(msg.Content) == "" {
		return apperrors.ErrEmptyContent
	}

	for _, cc := range msg.Cc {
		if !ValidAddress(strings.TrimSpace(cc)) {
			return invalidFormat("cc", cc)
		}
	}
	for _, bcc := range msg.Bcc {
		if !ValidAddress(strings.TrimSpace(bcc)) {
			return invalidFormat("bcc", bcc)
		}
	}

	var total int64
	for i, att := range msg.Attachments {
		if strings.TrimSpace(att.Filename) == "" {
			return apperrors.ErrInvalidAttachment.
				WithDetail(fmt.Sprintf("adjunto %d sin filename", i)).
				WithContext("index", i)
		}
		raw, err := base64.StdEncoding.DecodeString(att.Content)
		if err != nil {
			return apperrors.ErrInvalidAttachment.
				WithDetail(fmt.Sprintf("adjunto %q: contenido no es base64", att.Filename)).
				WithContext("filename", att.Filename).
				WithCause(err)
		}
		total += int64(len(raw))
	}
	if maxBytes > 0 && total > maxBytes {
		return apperrors.ErrSizeLimitExceeded.
			WithDetail(fmt.Sprintf("adjuntos suman %d bytes, límite %d", total, maxBytes)).
			WithContext("total_bytes", total).
			WithContext("max_bytes", maxBytes)
	}

	return nil
}

func invalidFormat(field, value string) error {
	return apperrors.ErrInvalidEmailFormat.
		WithDetail(fmt.Sprintf("campo %s: %q no es una dirección válida", field, value)).
		WithContext("field", field).
		WithContext("value", value)
}
