package service

import (
	"context"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenshop-backend/internal/domain"
)

type recordingSender struct {
	status int
	sent   []*mail.SGMailV3
}

func (r *recordingSender) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	r.sent = append(r.sent, email)
	return &rest.Response{StatusCode: r.status, Body: "{}"}, nil
}

func TestEmailService_SendOrderStatusEmail(t *testing.T) {
	sender := &recordingSender{status: 202}
	svc := newEmailService(sender, "shop@example.com", "Token Shop", "d-approved", "d-rejected")

	err := svc.SendOrderStatusEmail(context.Background(), "maker@example.com", OrderNotification{
		Status:   domain.OrderStatusRejected,
		ItemName: "Soldering iron",
		OrderID:  "0123456789abcdef",
		Memo:     "Out of stock",
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, "d-rejected", msg.TemplateID)
	assert.Equal(t, "shop@example.com", msg.From.Address)
	require.Len(t, msg.Personalizations, 1)
	p := msg.Personalizations[0]
	assert.Equal(t, "maker@example.com", p.To[0].Address)
	assert.Equal(t, "Soldering iron", p.DynamicTemplateData["itemName"])
	assert.Equal(t, "01234567", p.DynamicTemplateData["orderId"])
	assert.Equal(t, "Out of stock", p.DynamicTemplateData["memo"])
}

func TestEmailService_ProviderRejects(t *testing.T) {
	svc := newEmailService(&recordingSender{status: 401}, "shop@example.com", "", "d-approved", "d-rejected")

	err := svc.SendOrderStatusEmail(context.Background(), "maker@example.com", OrderNotification{Status: domain.OrderStatusApproved})
	assert.ErrorIs(t, err, domain.ErrExternalService)
}

func TestEmailService_MissingTemplateSkips(t *testing.T) {
	sender := &recordingSender{status: 202}
	svc := newEmailService(sender, "shop@example.com", "", "", "d-rejected")

	require.NoError(t, svc.SendOrderStatusEmail(context.Background(), "m@example.com", OrderNotification{Status: domain.OrderStatusApproved}))
	assert.Empty(t, sender.sent)
}

func TestNewEmailService_DisabledWithoutKey(t *testing.T) {
	svc := NewEmailService("", "shop@example.com", "", "d-a", "d-r")
	assert.IsType(t, noopEmailService{}, svc)
	assert.NoError(t, svc.SendOrderStatusEmail(context.Background(), "m@example.com", OrderNotification{Status: domain.OrderStatusApproved}))
}
