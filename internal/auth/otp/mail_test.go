package otp

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/go-mail/mail"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
)

func TestMailSenderSend(t *testing.T) {
	var sent *mail.Message
	s := &MailSender{
		Host: "smtp.example.com",
		Port: 587,
		From: "warden@example.com",
		send: func(m *mail.Message) error {
			sent = m
			return nil
		},
	}

	require.NoError(t, s.Send(context.Background(), domain.OtpChannelEmail, "alice@example.com", "483920"))
	require.NotNil(t, sent)
	require.Equal(t, []string{"warden@example.com"}, sent.GetHeader("From"))
	require.Equal(t, []string{"alice@example.com"}, sent.GetHeader("To"))
	require.Equal(t, []string{"Your verification code"}, sent.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := sent.WriteTo(&buf)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "483920")
}

func TestMailSenderCustomSubject(t *testing.T) {
	var sent *mail.Message
	s := &MailSender{From: "warden@example.com", Subject: "Sign in", send: func(m *mail.Message) error {
		sent = m
		return nil
	}}

	require.NoError(t, s.Send(context.Background(), domain.OtpChannelEmail, "bob@example.com", "111111"))
	require.Equal(t, []string{"Sign in"}, sent.GetHeader("Subject"))
}

func TestMailSenderRejectsSMS(t *testing.T) {
	s := &MailSender{send: func(*mail.Message) error {
		t.Fatal("nothing should be sent")
		return nil
	}}

	err := s.Send(context.Background(), domain.OtpChannelSMS, "+61400000000", "483920")
	require.ErrorIs(t, err, ErrUnsupportedChannel)
}

func TestMailSenderWrapsSendError(t *testing.T) {
	boom := errors.New("connection refused")
	s := &MailSender{send: func(*mail.Message) error { return boom }}

	err := s.Send(context.Background(), domain.OtpChannelEmail, "alice@example.com", "483920")
	require.ErrorIs(t, err, boom)
}

func TestMailSenderDialer(t *testing.T) {
	tests := []struct {
		mode   string
		ssl    bool
		policy mail.StartTLSPolicy
	}{
		{mode: TLSAuto, policy: mail.OpportunisticStartTLS},
		{mode: TLSStartTLS, policy: mail.MandatoryStartTLS},
		{mode: TLSSSL, ssl: true, policy: mail.OpportunisticStartTLS},
		{mode: TLSNone, policy: mail.NoStartTLS},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			s := &MailSender{Host: "smtp.example.com", Port: 2525, TLSMode: tt.mode}
			d := s.dialer()
			require.Equal(t, tt.ssl, d.SSL)
			require.Equal(t, tt.policy, d.StartTLSPolicy)
			require.NotNil(t, d.TLSConfig)
		})
	}
}

// recordingSender remembers the last delivery.
type recordingSender struct {
	channel, destination, code string
}

func (r *recordingSender) Send(_ context.Context, channel, destination, code string) error {
	r.channel, r.destination, r.code = channel, destination, code
	return nil
}

func TestRouter(t *testing.T) {
	email := &recordingSender{}
	r := Router{domain.OtpChannelEmail: email}

	require.NoError(t, r.Send(context.Background(), domain.OtpChannelEmail, "alice@example.com", "483920"))
	require.Equal(t, "alice@example.com", email.destination)
	require.Equal(t, "483920", email.code)

	err := r.Send(context.Background(), domain.OtpChannelSMS, "+61400000000", "483920")
	require.ErrorIs(t, err, ErrUnsupportedChannel)
}

func TestLogSender(t *testing.T) {
	require.NoError(t, LogSender{}.Send(context.Background(), domain.OtpChannelSMS, "+61400000000", "483920"))
}
