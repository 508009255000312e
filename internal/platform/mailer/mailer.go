// Copyright (c) 2026 Medora Health. All rights reserved.
// Author: dev@medora.health

/*
Package mailer delivers out-of-band notifications (one-time passcodes and
password-change confirmations) by email.

Architecture:

  - Mailer: The delivery contract consumed by the identity core. The core
    never knows whether a real SMTP relay or the log-only fallback is behind it.
  - SMTPMailer: Production implementation on top of wneessen/go-mail.
  - LogMailer: Development fallback that writes the would-be message to the
    structured log instead of the network.

Delivery failures are reported to the caller; whether a failure is fatal to
the surrounding operation is the caller's decision, not this package's.
*/
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"
)

// Mailer is the outbound notification contract of the identity core.
type Mailer interface {

	/*
		SendOTP delivers a one-time passcode to the recipient.

		Parameters:
		  - context: context.Context
		  - recipient: string (email address, normalized by the caller)
		  - code: string (the numeric passcode)

		Returns:
		  - error: Delivery failures
	*/
	SendOTP(context context.Context, recipient, code string) error

	/*
		SendPasswordChanged notifies the recipient that their password was reset.

		Parameters:
		  - context: context.Context
		  - recipient: string

		Returns:
		  - error: Delivery failures
	*/
	SendPasswordChanged(context context.Context, recipient string) error
}

// # SMTP Implementation

// SMTPConfig carries the relay settings for [NewSMTPMailer].
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer implements [Mailer] over an authenticated SMTP relay.
type SMTPMailer struct {
	client *mail.Client
	from   string
	logger *slog.Logger
}

// NewSMTPMailer dials nothing up front; the connection is established per
// send so a flapping relay never blocks startup.
func NewSMTPMailer(cfg SMTPConfig, logger *slog.Logger) (*SMTPMailer, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return nil, fmt.Errorf("mailer: failed to create smtp client: %w", err)
	}

	return &SMTPMailer{client: client, from: cfg.From, logger: logger}, nil
}

// SendOTP implements [Mailer].
func (mailer *SMTPMailer) SendOTP(context context.Context, recipient, code string) error {
	body := fmt.Sprintf("Your Medora verification code is %s. It expires in 10 minutes.", code)
	return mailer.send(context, recipient, "Medora - OTP Verification", body)
}

// SendPasswordChanged implements [Mailer].
func (mailer *SMTPMailer) SendPasswordChanged(context context.Context, recipient string) error {
	body := "Your Medora account password was just changed. If this wasn't you, contact support immediately."
	return mailer.send(context, recipient, "Medora - Password Changed", body)
}

// send assembles and submits a plain-text message to the relay.
func (mailer *SMTPMailer) send(context context.Context, recipient, subject, body string) error {
	message := mail.NewMsg()

	if err := message.From(mailer.from); err != nil {
		return fmt.Errorf("mailer: invalid sender address: %w", err)
	}
	if err := message.To(recipient); err != nil {
		return fmt.Errorf("mailer: invalid recipient address: %w", err)
	}

	message.Subject(subject)
	message.SetBodyString(mail.TypeTextPlain, body)

	if err := mailer.client.DialAndSendWithContext(context, message); err != nil {
		return fmt.Errorf("mailer: delivery failed: %w", err)
	}

	mailer.logger.Info("email_sent",
		slog.String("recipient", recipient),
		slog.String("subject", subject),
	)

	return nil
}

// # Development Fallback

// LogMailer implements [Mailer] by logging messages instead of sending them.
// Used when no SMTP relay is configured (local development, CI).
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a [LogMailer].
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendOTP implements [Mailer].
func (mailer *LogMailer) SendOTP(context context.Context, recipient, code string) error {
	mailer.logger.InfoContext(context, "email_skipped_no_smtp",
		slog.String("recipient", recipient),
		slog.String("subject", "Medora - OTP Verification"),
		slog.String("code", code),
	)
	return nil
}

// SendPasswordChanged implements [Mailer].
func (mailer *LogMailer) SendPasswordChanged(context context.Context, recipient string) error {
	mailer.logger.InfoContext(context, "email_skipped_no_smtp",
		slog.String("recipient", recipient),
		slog.String("subject", "Medora - Password Changed"),
	)
	return nil
}
