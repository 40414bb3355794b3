package types

// ContentType de un correo saliente.
const (
	ContentTypeText = "text/plain"
	ContentTypeHTML = "text/html"
)

// EmailMessage describe un correo a enviar en nombre del usuario autorizado.
type EmailMessage struct {
	To          string
	Cc          []string
	Bcc         []string
	Subject     string
	ContentType string // "text/plain" (default) o "text/html"
	Content     string
	Attachments []Attachment
}

// Attachment es un adjunto en base64, tal como llega por la API.
type Attachment struct {
	Filename string
	MimeType string
	Content  string // base64 estándar
}

// BodyContentType retorna el content type efectivo del cuerpo.
func (m *EmailMessage) BodyContentType() string {
	if m.ContentType == ContentTypeHTML {
		return ContentTypeHTML
	}
	return ContentTypeText
}
