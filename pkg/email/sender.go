package email

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	KindVerification  = "verification"
	KindPasswordReset = "password_reset"
)

// Metrics counts delivery outcomes.
type Metrics interface {
	RecordEmail(kind string, sent bool)
}

type noopMetrics struct{}

func (noopMetrics) RecordEmail(string, bool) {}

// SenderConfig holds the addressing and link settings for outgoing mail.
type SenderConfig struct {
	From       string
	AppBaseURL string

	// Lifetimes quoted in the message bodies.
	VerificationTTL  time.Duration
	PasswordResetTTL time.Duration
}

// Sender renders auth messages and hands them to a Provider. It satisfies
// auth.Mailer.
type Sender struct {
	provider Provider
	cfg      SenderConfig
	metrics  Metrics
	logger   logrus.FieldLogger
}

// NewSender creates a sender. Nil metrics and logger fall back to no-ops
// and the standard logger.
func NewSender(provider Provider, cfg SenderConfig, metrics Metrics, logger logrus.FieldLogger) *Sender {
	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = 15 * time.Minute
	}
	if cfg.PasswordResetTTL <= 0 {
		cfg.PasswordResetTTL = time.Hour
	}
	cfg.AppBaseURL = strings.TrimRight(cfg.AppBaseURL, "/")
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Sender{provider: provider, cfg: cfg, metrics: metrics, logger: logger}
}

// SendVerificationEmail mails a verification code.
func (s *Sender) SendVerificationEmail(ctx context.Context, to, code string) bool {
	return s.send(ctx, KindVerification, verificationTemplate, to, templateData{
		Code:          code,
		ExpiryMinutes: int(s.cfg.VerificationTTL / time.Minute),
	})
}

// SendPasswordResetEmail mails a reset link built from the app base URL.
func (s *Sender) SendPasswordResetEmail(ctx context.Context, to, token string) bool {
	return s.send(ctx, KindPasswordReset, resetTemplate, to, templateData{
		ResetURL:      s.ResetURL(token),
		ExpiryMinutes: int(s.cfg.PasswordResetTTL / time.Minute),
	})
}

// ResetURL is the frontend page that consumes a reset token.
func (s *Sender) ResetURL(token string) string {
	return s.cfg.AppBaseURL + "/reset-password?token=" + url.QueryEscape(token)
}

func (s *Sender) send(ctx context.Context, kind string, tmpl emailTemplate, to string, data templateData) bool {
	log := s.logger.WithFields(logrus.Fields{
		"kind":     kind,
		"provider": s.provider.Name(),
	})

	msg, err := tmpl.render(s.cfg.From, to, data)
	if err != nil {
		log.WithError(err).Error("failed to render email")
		s.metrics.RecordEmail(kind, false)
		return false
	}

	if err := s.provider.Send(ctx, msg); err != nil {
		log.WithError(err).Warn("failed to send email")
		s.metrics.RecordEmail(kind, false)
		return false
	}

	s.metrics.RecordEmail(kind, true)
	return true
}
