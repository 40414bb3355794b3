package google

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	mail "github.com/go-mail/mail"

	"github.com/dropDatabas3/mailjohn/internal/domain/repository"
	"github.com/dropDatabas3/mailjohn/internal/domain/types"
	apperrors "github.com/dropDatabas3/mailjohn/internal/errors"
)

// buildRawMessage renders the RFC 2822 message and encodes it the way
// the Gmail raw-send endpoint expects: base64url of the full MIME body.
func buildRawMessage(cfg *repository.VendorEmailConfiguration, msg *types.EmailMessage) (string, error) {
	m := mail.NewMessage()
	if cfg.UserEmail != nil && *cfg.UserEmail != "" {
		// Gmail overwrites From with the authenticated account anyway;
		// setting it keeps the rendered message self-consistent.
		m.SetHeader("From", *cfg.UserEmail)
	}
	m.SetHeader("To", msg.To)
	if len(msg.Cc) > 0 {
		m.SetHeader("Cc", msg.Cc...)
	}
	if len(msg.Bcc) > 0 {
		m.SetHeader("Bcc", msg.Bcc...)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody(msg.BodyContentType(), msg.Content)

	for _, att := range msg.Attachments {
		content, err := base64.StdEncoding.DecodeString(att.Content)
		if err != nil {
			return "", apperrors.ErrInvalidAttachment.
				WithDetail(fmt.Sprintf("adjunto %q: contenido no es base64", att.Filename)).
				WithContext("filename", att.Filename).
				WithCause(err)
		}
		settings := []mail.FileSetting{
			mail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
		}
		if att.MimeType != "" {
			settings = append(settings, mail.SetHeader(map[string][]string{
				"Content-Type": {att.MimeType},
			}))
		}
		m.Attach(att.Filename, settings...)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return "", apperrors.ErrInternal.WithCause(err)
	}
	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}
