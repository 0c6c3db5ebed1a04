package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"strings"

	mail "github.com/go-mail/mail/v2"

	"mobile-home-delivery/internal/domain"
)

type mailSender interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPConfig configures the e-mail channel.
type SMTPConfig struct {
	Host    string
	Port    int
	User    string
	Pass    string
	From    string
	AdminTo string
}

// EmailNotifier mails admins about declines, delays and critical issues.
type EmailNotifier struct {
	sender mailSender
	from   string
	to     []string
}

// NewEmailNotifier returns nil when SMTP is not configured.
func NewEmailNotifier(cfg SMTPConfig) *EmailNotifier {
	if cfg.Host == "" || cfg.From == "" || cfg.AdminTo == "" {
		return nil
	}
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	return newEmailNotifier(d, cfg.From, cfg.AdminTo)
}

func newEmailNotifier(s mailSender, from, to string) *EmailNotifier {
	var rcpt []string
	for _, addr := range strings.Split(to, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			rcpt = append(rcpt, addr)
		}
	}
	return &EmailNotifier{sender: s, from: from, to: rcpt}
}

// Name implements Notifier.
func (e *EmailNotifier) Name() string { return "email" }

// Handles implements Notifier.
func (e *EmailNotifier) Handles(n domain.Notification) bool {
	switch n.Event {
	case domain.EventAssignmentDeclined, domain.EventDeliveryDelayed:
		return true
	case domain.EventIssueReported:
		return payloadString(n, "severity") == string(domain.SeverityCritical)
	case domain.EventStatusChanged:
		return false
	default:
		return false
	}
}

// Send implements Notifier. go-mail has no context support; the dialer's
// own timeout bounds the call.
func (e *EmailNotifier) Send(_ context.Context, n domain.Notification) error {
	subject, body := e.compose(n)
	m := mail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", e.to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	if err := e.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (e *EmailNotifier) compose(n domain.Notification) (subject, body string) {
	id := payloadString(n, "delivery_id")
	var lines []string
	switch n.Event {
	case domain.EventAssignmentDeclined:
		subject = fmt.Sprintf("Delivery %s: assignment declined", id)
		lines = []string{
			"Driver " + payloadString(n, "driver_id") + " declined the " + payloadString(n, "role") + " assignment.",
			"Reason: " + orDash(payloadString(n, "reason")),
		}
	case domain.EventDeliveryDelayed:
		subject = fmt.Sprintf("Delivery %s delayed", orDash(payloadString(n, "delivery_number")))
		lines = []string{
			"Delayed from: " + payloadString(n, "delayed_from"),
			"Cause: " + payloadString(n, "reason"),
		}
	default:
		subject = fmt.Sprintf("Delivery %s: critical %s issue", id, payloadString(n, "type"))
		lines = []string{
			"Reported by driver " + payloadString(n, "reporter_id") + ".",
			payloadString(n, "description"),
		}
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(l))
		b.WriteString("</p>")
	}
	return subject, b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
