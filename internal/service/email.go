package service

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"tokenshop-backend/internal/domain"
	"tokenshop-backend/internal/logger"
)

type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type emailService struct {
	sender             mailSender
	from               *mail.Email
	approvedTemplateID string
	rejectedTemplateID string
}

// NewEmailService returns a SendGrid-backed EmailService. With an empty API key
// it returns a service that only logs.
func NewEmailService(apiKey, fromEmail, fromName, approvedTemplateID, rejectedTemplateID string) EmailService {
	if apiKey == "" {
		return noopEmailService{}
	}
	return newEmailService(sendgrid.NewSendClient(apiKey), fromEmail, fromName, approvedTemplateID, rejectedTemplateID)
}

func newEmailService(sender mailSender, fromEmail, fromName, approvedTemplateID, rejectedTemplateID string) *emailService {
	return &emailService{
		sender:             sender,
		from:               mail.NewEmail(fromName, fromEmail),
		approvedTemplateID: approvedTemplateID,
		rejectedTemplateID: rejectedTemplateID,
	}
}

func (s *emailService) SendOrderStatusEmail(ctx context.Context, to string, n OrderNotification) error {
	var templateID string
	switch n.Status {
	case domain.OrderStatusApproved:
		templateID = s.approvedTemplateID
	case domain.OrderStatusRejected:
		templateID = s.rejectedTemplateID
	default:
		return fmt.Errorf("no email for order status %q", n.Status)
	}
	if templateID == "" {
		logger.Debug("No template configured, skipping order email", "status", n.Status, "order_id", n.OrderID)
		return nil
	}

	message := mail.NewV3Mail()
	message.SetFrom(s.from)
	message.SetTemplateID(templateID)

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail("", to))
	p.SetDynamicTemplateData("itemName", n.ItemName)
	p.SetDynamicTemplateData("orderId", shortID(n.OrderID))
	p.SetDynamicTemplateData("memo", n.Memo)
	message.AddPersonalizations(p)

	logger.ExternalServiceCall("sendgrid", "SendOrderStatusEmail", "status", n.Status, "order_id", n.OrderID)
	resp, err := s.sender.SendWithContext(ctx, message)
	if err == nil && resp.StatusCode >= 400 {
		err = fmt.Errorf("%w: sendgrid status %d: %s", domain.ErrExternalService, resp.StatusCode, resp.Body)
	}
	logger.ExternalServiceResult("sendgrid", "SendOrderStatusEmail", err)
	if err != nil {
		return fmt.Errorf("failed to send order email: %w", err)
	}
	return nil
}

type noopEmailService struct{}

func (noopEmailService) SendOrderStatusEmail(ctx context.Context, to string, n OrderNotification) error {
	logger.Debug("Email disabled, skipping order email", "status", n.Status, "order_id", n.OrderID)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
