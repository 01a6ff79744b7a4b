package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sync"

	"github.com/rs/zerolog/log"
)

// Sender interface for sending emails
type Sender interface {
	Send(ctx context.Context, msg *EmailMessage) error
}

// Service handles email sending with templates. Sends are queued and
// processed by a background worker; delivery failures are logged and never
// propagated to the caller.
type Service struct {
	client    Sender
	templates map[string]*template.Template
	baseTmpl  *template.Template
	queue     chan *QueuedEmail
	wg        sync.WaitGroup
}

// QueuedEmail represents an email in the send queue
type QueuedEmail struct {
	To           string
	ToName       string
	Subject      string
	TemplateName string
	Data         interface{}
}

// NewService creates email service
func NewService(config SendGridConfig) *Service {
	return NewServiceWithSender(NewSendGridClient(config))
}

// NewServiceWithSender creates email service with a custom sender (tests).
func NewServiceWithSender(client Sender) *Service {
	s := &Service{
		client:    client,
		templates: make(map[string]*template.Template),
		queue:     make(chan *QueuedEmail, 100),
	}

	s.baseTmpl, _ = template.New("base").Parse(BaseTemplate)
	s.loadTemplates()

	s.wg.Add(1)
	go s.worker()

	return s
}

// loadTemplates loads all email templates
func (s *Service) loadTemplates() {
	templates := map[string]string{
		"funds_available":     FundsAvailableTemplate,
		"hold_released":       HoldReleasedTemplate,
		"dispute_opened":      DisputeOpenedTemplate,
		"dispute_resolved":    DisputeResolvedTemplate,
		"usage_warning":       UsageWarningTemplate,
		"usage_limit_reached": UsageLimitReachedTemplate,
	}

	for name, content := range templates {
		tmpl, err := template.New(name).Parse(content)
		if err != nil {
			log.Error().Err(err).Str("template", name).Msg("Failed to parse email template")
			continue
		}
		s.templates[name] = tmpl
	}
}

// worker processes queued emails asynchronously
func (s *Service) worker() {
	defer s.wg.Done()

	for email := range s.queue {
		ctx := context.Background()
		if err := s.send(ctx, email); err != nil {
			log.Error().Err(err).
				Str("to", email.To).
				Str("template", email.TemplateName).
				Msg("Failed to send email")
		}
	}
}

// send actually sends the email
func (s *Service) send(ctx context.Context, email *QueuedEmail) error {
	tmpl, ok := s.templates[email.TemplateName]
	if !ok {
		log.Warn().Str("template", email.TemplateName).Msg("Template not found")
		return nil
	}

	var contentBuf bytes.Buffer
	if err := tmpl.Execute(&contentBuf, email.Data); err != nil {
		return err
	}

	var htmlBuf bytes.Buffer
	if err := s.baseTmpl.Execute(&htmlBuf, map[string]interface{}{
		"Content": template.HTML(contentBuf.String()),
	}); err != nil {
		return err
	}

	return s.client.Send(ctx, &EmailMessage{
		To:          email.To,
		ToName:      email.ToName,
		Subject:     email.Subject,
		HTMLContent: htmlBuf.String(),
	})
}

// Queue adds an email to the async send queue
func (s *Service) Queue(to, toName, templateName, subject string, data interface{}) {
	select {
	case s.queue <- &QueuedEmail{
		To:           to,
		ToName:       toName,
		Subject:      subject,
		TemplateName: templateName,
		Data:         data,
	}:
	default:
		log.Warn().Str("to", to).Msg("Email queue full, dropping email")
	}
}

// Close stops the email worker
func (s *Service) Close() {
	close(s.queue)
	s.wg.Wait()
}

// FormatCents renders a cent amount as dollars for email bodies.
func FormatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

// --- Convenience methods for specific emails ---

// SendFundsAvailable notifies a payee that a pending credit matured.
func (s *Service) SendFundsAvailable(to, toName string, amount, available int64) {
	s.Queue(to, toName, "funds_available", "Funds available on Nestora", map[string]string{
		"Name":      toName,
		"Amount":    FormatCents(amount),
		"Available": FormatCents(available),
	})
}

// SendHoldReleased notifies a payee about a released guarantee hold.
func (s *Service) SendHoldReleased(to, toName, sourceID string, amount int64) {
	s.Queue(to, toName, "hold_released", "Your payout has been released", map[string]string{
		"Name":     toName,
		"SourceID": sourceID,
		"Amount":   FormatCents(amount),
	})
}

// SendDisputeOpened notifies a payee that a dispute was filed.
func (s *Service) SendDisputeOpened(to, toName, caseNumber string, amount int64, responseDeadline string) {
	s.Queue(to, toName, "dispute_opened", "A dispute was filed: "+caseNumber, map[string]string{
		"Name":             toName,
		"CaseNumber":       caseNumber,
		"Amount":           FormatCents(amount),
		"ResponseDeadline": responseDeadline,
	})
}

// SendDisputeResolved notifies a party about a dispute resolution.
func (s *Service) SendDisputeResolved(to, toName, caseNumber, outcome string, refundAmount int64) {
	s.Queue(to, toName, "dispute_resolved", "Dispute resolved: "+caseNumber, map[string]string{
		"Name":         toName,
		"CaseNumber":   caseNumber,
		"Outcome":      outcome,
		"RefundAmount": FormatCents(refundAmount),
	})
}

// SendUsageWarning warns a tenant approaching a plan limit.
func (s *Service) SendUsageWarning(to, toName, feature, planName string, current, limit, percent int) {
	s.Queue(to, toName, "usage_warning", "You are approaching your plan limit", map[string]interface{}{
		"Name":     toName,
		"Feature":  feature,
		"PlanName": planName,
		"Current":  current,
		"Limit":    limit,
		"Percent":  percent,
	})
}

// SendUsageLimitReached tells a tenant a plan limit is exhausted.
func (s *Service) SendUsageLimitReached(to, toName, feature, planName string, limit int) {
	s.Queue(to, toName, "usage_limit_reached", "Plan limit reached", map[string]interface{}{
		"Name":     toName,
		"Feature":  feature,
		"PlanName": planName,
		"Limit":    limit,
	})
}
