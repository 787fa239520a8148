package notifier

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"PriceSentinel/internal/model"
)

// EmailNotifier is the boundary to an email provider. No provider is wired;
// the rendered message is logged.
type EmailNotifier struct {
	log zerolog.Logger
}

func NewEmailNotifier(log zerolog.Logger) *EmailNotifier {
	return &EmailNotifier{log: log.With().Str("comp", "email").Logger()}
}

func (n *EmailNotifier) Notify(_ context.Context, alert *model.Alert, payload model.Payload) error {
	to := alert.ChannelConfig.String("email")
	if to == "" {
		return fmt.Errorf("email alert %d: %w: email", alert.ID, ErrMissingConfig)
	}
	n.log.Info().
		Int64("alert_id", alert.ID).
		Str("to", to).
		Str("subject", FormatSubject(payload)).
		Str("body", FormatMessage(payload)).
		Msg("email notification handed off")
	return nil
}

// SMSNotifier is the boundary to an SMS provider. No provider is wired;
// the rendered message is logged.
type SMSNotifier struct {
	log zerolog.Logger
}

func NewSMSNotifier(log zerolog.Logger) *SMSNotifier {
	return &SMSNotifier{log: log.With().Str("comp", "sms").Logger()}
}

func (n *SMSNotifier) Notify(_ context.Context, alert *model.Alert, payload model.Payload) error {
	phone := alert.ChannelConfig.String("phone")
	if phone == "" {
		return fmt.Errorf("sms alert %d: %w: phone", alert.ID, ErrMissingConfig)
	}
	n.log.Info().
		Int64("alert_id", alert.ID).
		Str("to", phone).
		Str("body", FormatMessage(payload)).
		Msg("sms notification handed off")
	return nil
}
