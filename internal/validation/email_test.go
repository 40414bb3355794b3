package validation

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/dropDatabas3/mailjohn/internal/domain/types"
	apperrors "github.com/dropDatabas3/mailjohn/internal/errors"
)

func TestValidAddress(t *testing.T) {
	valids := []string{
		"a@b.co",
		"user.name+tag@example.com",
		"x_y-z@sub.domain.org",
	}
	for _, v := range valids {
		if !ValidAddress(v) {
			t.Fatalf("expected valid: %q", v)
		}
	}

	invalids := []string{
		"",
		"   ",
		"not-an-email",
		"@example.com",
		"user@",
		"user@@example.com",
		"with spaces@example.com",
		"Name Display <a@b.co>", // display name no es parte del contrato
	}
	for _, v := range invalids {
		if ValidAddress(v) {
			t.Fatalf("expected invalid: %q", v)
		}
	}
}

func validMsg() *types.EmailMessage {
	return &types.EmailMessage{
		To:      "dest@example.com",
		Subject: "Hola",
		Content: "Cuerpo",
	}
}

func TestValidateMessage_OK(t *testing.T) {
	if err := ValidateMessage(validMsg(), 0); err != nil {
		t.Fatalf("valid message rejected: %v", err)
	}
}

func TestValidateMessage_Recipient(t *testing.T) {
	m := validMsg()
	m.To = ""
	err := ValidateMessage(m, 0)
	if apperrors.CodeOf(err) != apperrors.CodeInvalidRecipient {
		t.Fatalf("empty to: got %v", err)
	}

	m.To = "not-an-email"
	err = ValidateMessage(m, 0)
	if apperrors.CodeOf(err) != apperrors.CodeInvalidEmailFormat {
		t.Fatalf("bad to: got %v", err)
	}
	appErr := apperrors.FromError(err)
	if appErr.Context["field"] != "to" {
		t.Fatalf("expected field=to in context, got %v", appErr.Context)
	}
	if appErr.Context["value"] != "not-an-email" {
		t.Fatalf("expected offending value in context, got %v", appErr.Context)
	}
}

func TestValidateMessage_SubjectAndContent(t *testing.T) {
	m := validMsg()
	m.Subject = "   "
	if apperrors.CodeOf(ValidateMessage(m, 0)) != apperrors.CodeEmptySubject {
		t.Fatalf("blank subject must fail with empty_subject")
	}

	m = validMsg()
	m.Content = ""
	if apperrors.CodeOf(ValidateMessage(m, 0)) != apperrors.CodeEmptyContent {
		t.Fatalf("empty content must fail with empty_content")
	}
}

func TestValidateMessage_CcBcc(t *testing.T) {
	m := validMsg()
	m.Cc = []string{"ok@example.com", "broken"}
	err := ValidateMessage(m, 0)
	if apperrors.CodeOf(err) != apperrors.CodeInvalidEmailFormat {
		t.Fatalf("bad cc: got %v", err)
	}
	if apperrors.FromError(err).Context["field"] != "cc" {
		t.Fatalf("expected field=cc")
	}

	m = validMsg()
	m.Bcc = []string{"nope@"}
	err = ValidateMessage(m, 0)
	if apperrors.FromError(err).Context["field"] != "bcc" {
		t.Fatalf("expected field=bcc")
	}
}

func TestValidateMessage_Attachments(t *testing.T) {
	m := validMsg()
	m.Attachments = []types.Attachment{{Filename: "", Content: ""}}
	if apperrors.CodeOf(ValidateMessage(m, 0)) != apperrors.CodeInvalidAttachment {
		t.Fatalf("attachment without filename must fail")
	}

	m.Attachments = []types.Attachment{{Filename: "a.txt", Content: "%%%not-base64%%%"}}
	if apperrors.CodeOf(ValidateMessage(m, 0)) != apperrors.CodeInvalidAttachment {
		t.Fatalf("non-base64 attachment must fail")
	}

	payload := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", 100)))
	m.Attachments = []types.Attachment{{Filename: "a.txt", MimeType: "text/plain", Content: payload}}
	if err := ValidateMessage(m, 1000); err != nil {
		t.Fatalf("small attachment rejected: %v", err)
	}
	if apperrors.CodeOf(ValidateMessage(m, 50)) != apperrors.CodeSizeLimitExceeded {
		t.Fatalf("oversized attachment must fail with size_limit_exceeded")
	}
}
