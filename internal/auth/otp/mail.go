// Package otp delivers one-time codes for the TFA challenge and talks to an
// external OTP service for the delegated strategy.
package otp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-mail/mail"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// ErrUnsupportedChannel is returned by senders that cannot reach a channel.
var ErrUnsupportedChannel = errors.New("otp: unsupported channel")

// TLS modes of MailSender.
const (
	TLSAuto     = "auto"
	TLSStartTLS = "starttls"
	TLSSSL      = "ssl"
	TLSNone     = "none"
)

// MailSender delivers codes by email over SMTP.
type MailSender struct {
	Host               string
	Port               int
	From               string
	User               string
	Pass               string
	TLSMode            string
	InsecureSkipVerify bool

	// Subject defaults to "Your verification code".
	Subject string

	// send replaces the SMTP round trip in tests.
	send func(*mail.Message) error
}

func (s *MailSender) subject() string {
	if s.Subject != "" {
		return s.Subject
	}
	return "Your verification code"
}

func (s *MailSender) message(destination, code string) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", destination)
	m.SetHeader("Subject", s.subject())
	m.SetBody("text/plain", fmt.Sprintf("Your verification code is %s.\n\nIt expires in a few minutes. If you did not try to sign in, ignore this email.\n", code))
	m.AddAlternative("text/html", fmt.Sprintf("<p>Your verification code is <strong>%s</strong>.</p><p>It expires in a few minutes. If you did not try to sign in, ignore this email.</p>", code))
	return m
}

func (s *MailSender) dialer() *mail.Dialer {
	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.TLSConfig = &tls.Config{
		ServerName:         s.Host,
		InsecureSkipVerify: s.InsecureSkipVerify,
	}
	switch s.TLSMode {
	case TLSSSL:
		d.SSL = true
	case TLSNone:
		d.TLSConfig = &tls.Config{InsecureSkipVerify: s.InsecureSkipVerify}
		d.StartTLSPolicy = mail.NoStartTLS
	case TLSStartTLS:
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}
	return d
}

// Send mails code to destination. Only the email channel is supported.
func (s *MailSender) Send(ctx context.Context, channel, destination, code string) error {
	if channel != domain.OtpChannelEmail {
		return fmt.Errorf("%w: %s", ErrUnsupportedChannel, channel)
	}

	l := slogx.FromContext(ctx).With(
		slog.String("component", "otp.mail"),
		slog.String("host", s.Host),
		slog.Int("port", s.Port))

	m := s.message(destination, code)
	send := s.send
	if send == nil {
		send = func(m *mail.Message) error { return s.dialer().DialAndSend(m) }
	}
	if err := send(m); err != nil {
		l.Error("smtp send failed", slog.Any("error", err))
		return fmt.Errorf("smtp send: %w", err)
	}

	l.Debug("otp mail sent", slog.String("tls_mode", s.TLSMode))
	return nil
}

// LogSender writes codes to the log instead of delivering them. It is meant
// for local development only.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, channel, destination, code string) error {
	slogx.FromContext(ctx).Warn("otp not delivered, logging it instead",
		slog.String("channel", channel),
		slog.String("destination", destination),
		slog.String("code", code))
	return nil
}

// Router picks a sender per channel.
type Router map[string]Sender

// Sender matches the embedded strategy's delivery contract.
type Sender interface {
	Send(ctx context.Context, channel, destination, code string) error
}

func (r Router) Send(ctx context.Context, channel, destination, code string) error {
	s, ok := r[channel]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedChannel, channel)
	}
	return s.Send(ctx, channel, destination, code)
}
