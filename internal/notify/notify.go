// Package notify tells applicants about changes to their application by email and SMS.
package notify

import (
	"context"
	"errors"
	"fmt"

	"soloparent-workers/internal/common/logger"
)

var ErrTemplateNotFound = errors.New("notification template not found")

const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, text, html string) (string, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

type Recipient struct {
	GivenName string
	Email     string
	Mobile    string
}

// Delivery is the outcome on one channel.
type Delivery struct {
	Channel   string `json:"channel"`
	Status    string `json:"status"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Notifier sends on every channel that has a sender and a matching contact. A nil sender
// disables its channel.
type Notifier struct {
	email  EmailSender
	sms    SMSSender
	logger logger.Logger
}

func New(email EmailSender, sms SMSSender, log logger.Logger) *Notifier {
	return &Notifier{email: email, sms: sms, logger: log}
}

// Notify renders notificationType for r and sends it. Channel failures are reported in the
// deliveries, not as an error.
func (n *Notifier) Notify(ctx context.Context, notificationType, applicationID string, r Recipient) ([]Delivery, error) {
	tmpl, ok := templates[notificationType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, notificationType)
	}
	msg, err := tmpl.render(Data{GivenName: r.GivenName, ApplicationID: applicationID})
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", notificationType, err)
	}

	var deliveries []Delivery
	if n.email != nil && r.Email != "" {
		id, err := n.email.SendEmail(ctx, r.Email, msg.Subject, msg.Text, msg.HTML)
		deliveries = append(deliveries, n.delivery(ChannelEmail, applicationID, id, err))
	}
	if n.sms != nil && r.Mobile != "" {
		id, err := n.sms.SendSMS(ctx, r.Mobile, msg.SMS)
		deliveries = append(deliveries, n.delivery(ChannelSMS, applicationID, id, err))
	}
	return deliveries, nil
}

func (n *Notifier) delivery(channel, applicationID, messageID string, err error) Delivery {
	if err != nil {
		n.logger.Error("notification send failed", map[string]interface{}{
			"channel":       channel,
			"applicationId": applicationID,
			"error":         err,
		})
		return Delivery{Channel: channel, Status: StatusFailed, Error: err.Error()}
	}
	return Delivery{Channel: channel, Status: StatusSent, MessageID: messageID}
}

// Status folds deliveries into one value: sent if any channel went out, failed if every attempt
// failed, disabled if nothing was attempted.
func Status(deliveries []Delivery) string {
	if len(deliveries) == 0 {
		return StatusDisabled
	}
	for _, d := range deliveries {
		if d.Status == StatusSent {
			return StatusSent
		}
	}
	return StatusFailed
}
