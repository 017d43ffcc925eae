package notification

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/smtp"
	"strings"
	"testing"
)

type capturedMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func newTestEmailService(cfg EmailConfig, sendErr error) (*EmailService, *capturedMail) {
	captured := &capturedMail{}
	svc := NewEmailService(cfg)
	svc.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		captured.addr = addr
		captured.auth = a
		captured.from = from
		captured.to = to
		captured.msg = string(msg)
		return sendErr
	}
	return svc, captured
}

func TestSendVerificationCode(t *testing.T) {
	svc, got := newTestEmailService(EmailConfig{
		Host:     "smtp.example.com",
		Port:     587,
		User:     "mailer",
		Password: "pw",
		From:     "no-reply@example.com",
		FromName: "True Feedback",
	}, nil)

	if err := svc.SendVerificationCode(context.Background(), "alice@example.com", "alice", "042917"); err != nil {
		t.Fatalf("SendVerificationCode() error = %v", err)
	}

	if got.addr != "smtp.example.com:587" {
		t.Errorf("addr = %q, want %q", got.addr, "smtp.example.com:587")
	}
	if got.auth == nil {
		t.Error("auth = nil, want PLAIN auth when a user is configured")
	}
	if got.from != "no-reply@example.com" {
		t.Errorf("envelope from = %q", got.from)
	}
	if len(got.to) != 1 || got.to[0] != "alice@example.com" {
		t.Errorf("to = %v", got.to)
	}

	for _, want := range []string{
		"From: True Feedback <no-reply@example.com>\r\n",
		"Subject: True Feedback - Verification Code\r\n",
		"Hello alice,",
		"042917",
	} {
		if !strings.Contains(got.msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSendVerificationCode_NoAuthAndErrors(t *testing.T) {
	svc, got := newTestEmailService(EmailConfig{Host: "localhost", Port: 25, From: "a@b.c"}, errors.New("relay refused"))

	err := svc.SendVerificationCode(context.Background(), "x@example.com", "x", "123456")
	if err == nil {
		t.Fatal("expected send error")
	}
	if got.auth != nil {
		t.Error("auth should be nil without SMTP user")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.SendVerificationCode(ctx, "x@example.com", "x", "123456"); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRenderVerificationEmail_Escapes(t *testing.T) {
	body, err := RenderVerificationEmail("<script>", "123456")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(body, "<script>") {
		t.Error("username should be HTML escaped")
	}
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	sender := NewLogSender(slog.New(slog.NewJSONHandler(&buf, nil)))

	if err := sender.SendVerificationCode(context.Background(), "a@example.com", "alice", "654321"); err != nil {
		t.Fatalf("SendVerificationCode() error = %v", err)
	}
	if !strings.Contains(buf.String(), "654321") {
		t.Errorf("log output = %q, want the code", buf.String())
	}
}
