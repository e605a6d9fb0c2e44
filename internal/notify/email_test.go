package notify

import (
	"strings"
	"testing"
)

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("no-reply@rentoffice.local", "renter@example.com", "Viewing confirmed", "See you there.")

	headers := []string{
		"From: no-reply@rentoffice.local",
		"To: renter@example.com",
		"Subject: Viewing confirmed",
		"Content-Type: text/plain; charset=utf-8",
	}
	for _, h := range headers {
		if !strings.Contains(msg, h+"\r\n") {
			t.Errorf("message missing header %q:\n%s", h, msg)
		}
	}

	if !strings.Contains(msg, "\r\n\r\nSee you there.") {
		t.Errorf("body not separated from headers by a blank line:\n%s", msg)
	}
}

func TestNewSMTPSenderDefaults(t *testing.T) {
	s := NewSMTPSender(" 127.0.0.1 ", " 1025 ", "  ")
	if s.addr != "127.0.0.1:1025" {
		t.Errorf("addr = %q, want %q", s.addr, "127.0.0.1:1025")
	}
	if s.from != "no-reply@rentoffice.local" {
		t.Errorf("from = %q, want fallback sender", s.from)
	}
}
