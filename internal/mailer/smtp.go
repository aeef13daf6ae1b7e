package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/docchat/internal/model"
)

// Config holds the SMTP account used when drafts are delivered directly
// instead of through the email backend.
type Config struct {
	Host     string
	Port     int
	User     string
	Pass     string
	FromName string
}

// Message is a formatted outbound email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// SMTPSender sends drafts as plain-text mail through an SMTP relay.
type SMTPSender struct {
	cfg    *Config
	sendFn func(msg Message) error
}

func NewSMTPSender(cfg *Config) *SMTPSender {
	s := &SMTPSender{cfg: cfg}
	s.sendFn = s.send
	return s
}

func (s *SMTPSender) Send(ctx context.Context, draft model.EmailDraft) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if s.cfg == nil || s.cfg.Host == "" {
		return Receipt{}, fmt.Errorf("mailer: smtp not configured")
	}

	msg := Message{
		From:    s.cfg.User,
		To:      []string{draft.Recipient},
		Subject: draft.Subject,
		Body:    draft.Body,
	}
	if err := s.sendFn(msg); err != nil {
		return Receipt{}, fmt.Errorf("mailer: smtp send: %w", err)
	}
	return Receipt{
		Status:  "success",
		Message: fmt.Sprintf("Email sent successfully to %s", draft.Recipient),
	}, nil
}

func (s *SMTPSender) send(msg Message) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	return smtp.SendMail(addr, auth, msg.From, msg.To, []byte(s.formatMessage(msg)))
}

func (s *SMTPSender) formatMessage(msg Message) string {
	from := msg.From
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.cfg.FromName, msg.From)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", sanitizeHeader(strings.Join(msg.To, ", ")))
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return b.String()
}

// sanitizeHeader strips line breaks so a subject cannot inject headers.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
