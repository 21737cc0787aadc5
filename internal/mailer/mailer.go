package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
)

type Kind string

const (
	KindTicketIssued     Kind = "ticket_issued"
	KindPaymentConfirmed Kind = "payment_confirmed"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Message struct {
	Kind       Kind
	To         string
	EventTitle string
	TicketType string
	Credential string
}

// Sender delivers attendee notifications.
type Sender interface {
	Send(msg Message) error
}

type Mailer struct {
	cfg  Config
	log  *zerolog.Logger
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func New(cfg Config, log *zerolog.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log, send: smtp.SendMail}
}

func (m *Mailer) Enabled() bool {
	return m.cfg.Host != ""
}

func (m *Mailer) Send(msg Message) error {
	if !m.Enabled() {
		m.log.Debug().Str("kind", string(msg.Kind)).Msg("mailer disabled, skipping email")
		return nil
	}
	if msg.To == "" {
		return fmt.Errorf("send email: empty recipient")
	}

	subject, body := render(msg)
	raw := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		m.cfg.From, msg.To, subject, body,
	)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	if err := m.send(addr, auth, m.cfg.From, []string{msg.To}, []byte(raw)); err != nil {
		m.log.Warn().Err(err).Str("to", msg.To).Str("kind", string(msg.Kind)).Msg("failed to send email")
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Str("to", msg.To).Str("kind", string(msg.Kind)).Msg("email sent")
	return nil
}

func render(msg Message) (subject, body string) {
	var b strings.Builder
	switch msg.Kind {
	case KindTicketIssued:
		subject = fmt.Sprintf("Your ticket for %s", msg.EventTitle)
		fmt.Fprintf(&b, "Hello!\n\nYou are registered for %q (%s).\n", msg.EventTitle, msg.TicketType)
		fmt.Fprintf(&b, "Show this code at the entrance:\n\n%s\n\nYour payment is pending until we hear from the payment provider.\n", msg.Credential)
	case KindPaymentConfirmed:
		subject = fmt.Sprintf("Payment confirmed for %s", msg.EventTitle)
		fmt.Fprintf(&b, "Hello!\n\nWe received your payment for %q (%s). See you there!\n", msg.EventTitle, msg.TicketType)
	default:
		subject = msg.EventTitle
	}
	return subject, b.String()
}
