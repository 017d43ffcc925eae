package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
)

// VerificationSubject is the subject line of verification emails.
const VerificationSubject = "True Feedback - Verification Code"

var verificationTemplate = template.Must(template.New("verification").Parse(`<html><body>
		<h2>Hello {{.Username}},</h2>
		<p>Thank you for registering. Please use the following verification code to complete your registration:</p>
		<p style="font-size:24px;letter-spacing:4px"><strong>{{.Code}}</strong></p>
		<p>If you did not request this code, please ignore this email.</p>
	</body></html>`))

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
}

// MailFunc matches smtp.SendMail.
type MailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type EmailService struct {
	config   EmailConfig
	sendMail MailFunc
}

func NewEmailService(config EmailConfig) *EmailService {
	return &EmailService{config: config, sendMail: smtp.SendMail}
}

// SendVerificationCode emails the sign-up verification code to the user.
func (s *EmailService) SendVerificationCode(ctx context.Context, to, username, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := RenderVerificationEmail(username, code)
	if err != nil {
		return err
	}
	return s.sendEmail(to, VerificationSubject, body)
}

// RenderVerificationEmail renders the HTML body of a verification email.
func RenderVerificationEmail(username, code string) (string, error) {
	var buf bytes.Buffer
	err := verificationTemplate.Execute(&buf, struct {
		Username string
		Code     string
	}{Username: username, Code: code})
	if err != nil {
		return "", fmt.Errorf("failed to render verification email: %w", err)
	}
	return buf.String(), nil
}

func (s *EmailService) sendEmail(to, subject, body string) error {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body)

	var auth smtp.Auth
	if s.config.User != "" {
		auth = smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	return s.sendMail(addr, auth, s.config.From, []string{to}, []byte(msg))
}

// LogSender writes verification codes to the log instead of sending email.
// It is used when no SMTP relay is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendVerificationCode(ctx context.Context, to, username, code string) error {
	s.logger.InfoContext(ctx, "verification code issued (SMTP not configured)",
		"to", to,
		"username", username,
		"code", code,
	)
	return nil
}
