package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/core/port"
	"github.com/dreamwise/dreamwise-api/internal/infra/logger"
)

const (
	TemplateVerifyEmail   = "verify_email"
	TemplatePasswordReset = "password_reset"
)

// EventMailer hands email delivery to the mail worker through
// notification.email.requested events.
type EventMailer struct {
	events   port.EventPublisher
	logger   *zap.Logger
	logCodes bool
	now      func() time.Time
}

// Option customises an EventMailer.
type Option func(*EventMailer)

// WithCodeLogging writes the plain code to the log. Development only.
func WithCodeLogging(enabled bool) Option {
	return func(m *EventMailer) {
		m.logCodes = enabled
	}
}

func NewEventMailer(events port.EventPublisher, log *zap.Logger, opts ...Option) *EventMailer {
	if log == nil {
		log = zap.NewNop()
	}
	m := &EventMailer{events: events, logger: log, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *EventMailer) SendVerificationEmail(ctx context.Context, email, username, code string) error {
	return m.send(ctx, TemplateVerifyEmail, email, username, code)
}

func (m *EventMailer) SendPasswordResetEmail(ctx context.Context, email, username, code string) error {
	return m.send(ctx, TemplatePasswordReset, email, username, code)
}

func (m *EventMailer) send(ctx context.Context, template, email, username, code string) error {
	fields := []zap.Field{
		zap.String("template", template),
		zap.String("email", logger.MaskEmail(email)),
		zap.String("username", username),
	}
	if m.logCodes {
		fields = append(fields, zap.String("dev_code", code))
	}
	m.logger.Info("dispatch email", fields...)

	if m.events == nil {
		return nil
	}

	event := domain.EmailRequestedEvent{
		EventID:     uuid.NewString(),
		Template:    template,
		Email:       email,
		Username:    username,
		Code:        code,
		RequestedAt: m.now().UTC(),
	}
	if err := m.events.PublishEmailRequested(ctx, event); err != nil {
		return fmt.Errorf("publish %s email: %w", template, err)
	}
	return nil
}

var _ port.Mailer = (*EventMailer)(nil)
