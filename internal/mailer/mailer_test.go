package mailer

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailerDisabled(t *testing.T) {
	log := zerolog.Nop()
	m := New(Config{}, &log)
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called when disabled")
		return nil
	}

	assert.False(t, m.Enabled())
	assert.NoError(t, m.Send(Message{Kind: KindTicketIssued, To: "a@example.com"}))
}

func TestMailerSend(t *testing.T) {
	log := zerolog.Nop()
	m := New(Config{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", From: "noreply@example.com"}, &log)

	var gotAddr string
	var gotTo []string
	var gotMsg string
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	require.NoError(t, m.Send(Message{
		Kind:       KindTicketIssued,
		To:         "a@example.com",
		EventTitle: "Go Meetup",
		TicketType: "GA",
		Credential: "QR.abc",
	}))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"a@example.com"}, gotTo)
	assert.True(t, strings.Contains(gotMsg, "Subject: Your ticket for Go Meetup"))
	assert.True(t, strings.Contains(gotMsg, "QR.abc"))
}

func TestMailerSendError(t *testing.T) {
	log := zerolog.Nop()
	m := New(Config{Host: "smtp.example.com", Port: 25}, &log)
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	assert.Error(t, m.Send(Message{Kind: KindPaymentConfirmed, To: "a@example.com"}))
	assert.Error(t, m.Send(Message{Kind: KindPaymentConfirmed}))
}
