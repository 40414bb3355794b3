package microsoft

import (
	"github.com/dropDatabas3/mailjohn/internal/domain/types"
)

// Graph sendMail wire types. Kept private: no other package builds
// Graph payloads.

type graphEmailAddress struct {
	Address string `json:"address"`
}

type graphRecipient struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

type graphBody struct {
	ContentType string `json:"contentType"` // "Text" | "HTML"
	Content     string `json:"content"`
}

type graphAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType,omitempty"`
	ContentBytes string `json:"contentBytes"`
}

type graphMessage struct {
	Subject       string            `json:"subject"`
	Body          graphBody         `json:"body"`
	ToRecipients  []graphRecipient  `json:"toRecipients"`
	CcRecipients  []graphRecipient  `json:"ccRecipients,omitempty"`
	BccRecipients []graphRecipient  `json:"bccRecipients,omitempty"`
	Attachments   []graphAttachment `json:"attachments,omitempty"`
}

type sendMailRequest struct {
	Message         graphMessage `json:"message"`
	SaveToSentItems bool         `json:"saveToSentItems"`
}

// buildSendMailRequest maps an EmailMessage onto the Graph sendMail
// shape. Attachment content is already standard base64, which is what
// contentBytes expects, so it passes through untouched.
func buildSendMailRequest(msg *types.EmailMessage) sendMailRequest {
	contentType := "Text"
	if msg.BodyContentType() == types.ContentTypeHTML {
		contentType = "HTML"
	}

	gm := graphMessage{
		Subject: msg.Subject,
		Body: graphBody{
			ContentType: contentType,
			Content:     msg.Content,
		},
		ToRecipients: []graphRecipient{recipient(msg.To)},
	}
	for _, cc := range msg.Cc {
		gm.CcRecipients = append(gm.CcRecipients, recipient(cc))
	}
	for _, bcc := range msg.Bcc {
		gm.BccRecipients = append(gm.BccRecipients, recipient(bcc))
	}
	for _, att := range msg.Attachments {
		gm.Attachments = append(gm.Attachments, graphAttachment{
			ODataType:    "#microsoft.graph.fileAttachment",
			Name:         att.Filename,
			ContentType:  att.MimeType,
			ContentBytes: att.Content,
		})
	}

	return sendMailRequest{Message: gm, SaveToSentItems: true}
}

func recipient(addr string) graphRecipient {
	return graphRecipient{EmailAddress: graphEmailAddress{Address: addr}}
}
