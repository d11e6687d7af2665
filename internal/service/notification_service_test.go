package service

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/utility-crm/internal/config"
	"github.com/spec-kit/utility-crm/internal/domain"
	"github.com/spec-kit/utility-crm/internal/events"
)

func TestNotificationServiceStubs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	dispatcher := events.NewInMemoryDispatcher(logger)
	svc := NewNotificationService(dispatcher, logger, nil, config.NotificationConfig{
		SMSSender:  "UTILITY",
		WebhookURL: "http://hooks.local/crm",
	})
	svc.RegisterHandlers()

	ctx := context.Background()
	actor := events.Actor{UserID: 7, Role: domain.RoleEmployee}
	_ = dispatcher.Publish(ctx, events.NewEvent(events.EventTicketStatusChanged, 1, actor, events.TicketStatusChangedPayload{
		TicketNumber:  "TCK-1",
		OldStatus:     domain.TicketStatusUnseen,
		NewStatus:     domain.TicketStatusInProgress,
		CustomerPhone: "+989121234567",
	}))
	_ = dispatcher.Publish(ctx, events.NewEvent(events.EventLoginCodeIssued, 0, actor, events.LoginCodeIssuedPayload{
		Phone: "+989121234567",
		Code:  "123456",
	}))

	if n := logs.FilterMessage("sendSMSStub").Len(); n != 2 {
		t.Fatalf("sms stubs = %d, want 2", n)
	}
	if n := logs.FilterMessage("sendWebhookNotificationStub").Len(); n != 1 {
		t.Fatalf("webhook stubs = %d, want 1", n)
	}
	for _, entry := range logs.All() {
		for _, field := range entry.Context {
			if field.String == "123456" {
				t.Fatalf("verification code leaked in %q", entry.Message)
			}
		}
		if to, ok := entry.ContextMap()["to"]; ok && to != "*********4567" {
			t.Fatalf("phone not masked: %v", to)
		}
	}
}
