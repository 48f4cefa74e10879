package email

import (
	"strings"
	"testing"
)

func TestRenderVerifyEmail(t *testing.T) {
	body, err := Render(TemplateVerifyEmail, map[string]any{
		"Name":      "Ada",
		"VerifyURL": "https://shop.example/api/auth/verify-email/confirm?token=abc&email=ada%40example.com",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(body, "Hi Ada") {
		t.Fatalf("expected greeting, got %s", body)
	}
	if !strings.Contains(body, "token=abc") {
		t.Fatalf("expected verify link, got %s", body)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	if _, err := Render("missing", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}
