package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/referral-service/internal/config"
	"github.com/spec-kit/referral-service/internal/events"
)

const webhookTimeout = 5 * time.Second

// NotificationService reports referral lifecycle events: one structured log line per event,
// plus a JSON POST to the partner webhook when NOTIFY_WEBHOOK_URL is set.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	webhookURL string
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     defaultLogger(logger),
		webhookURL: strings.TrimSpace(cfg.WebhookURL),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventReferralCreated, n.handleReferralCreated)
	n.dispatcher.Subscribe(events.EventReferralStatusChanged, n.handleReferralStatusChanged)
	n.dispatcher.Subscribe(events.EventReferralsExpired, n.handleReferralsExpired)
	n.dispatcher.Subscribe(events.EventUserSetupCompleted, n.handleUserSetupCompleted)
}

// webhookMessage is the document POSTed to the webhook.
type webhookMessage struct {
	ID         string           `json:"id"`
	Event      events.EventType `json:"event"`
	ReferralID string           `json:"referralId,omitempty"`
	ActorEmail string           `json:"actorEmail,omitempty"`
	OccurredAt time.Time        `json:"occurredAt"`
	Data       any              `json:"data"`
}

func (n *NotificationService) handleReferralCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ReferralCreatedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	n.logger.Info("referral registered",
		zap.String("referral_id", event.ReferralID),
		zap.String("owner_email", payload.OwnerEmail),
		zap.String("developer", payload.Developer),
		zap.String("status", string(payload.Status)))
	return n.deliver(ctx, event, payload)
}

func (n *NotificationService) handleReferralStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ReferralStatusChangedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	if payload.OldStatus == payload.NewStatus {
		return nil
	}
	n.logger.Info("referral status changed",
		zap.String("referral_id", event.ReferralID),
		zap.String("from", string(payload.OldStatus)),
		zap.String("to", string(payload.NewStatus)),
		zap.String("changed_by", event.Actor.Email))
	return n.deliver(ctx, event, payload)
}

func (n *NotificationService) handleReferralsExpired(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ReferralsExpiredPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	if payload.Modified == 0 {
		return nil
	}
	n.logger.Info("stale referrals expired",
		zap.String("from", string(payload.From)),
		zap.String("to", string(payload.To)),
		zap.Time("cutoff", payload.Cutoff),
		zap.Int64("modified", payload.Modified))
	return n.deliver(ctx, event, payload)
}

// Setup completion is account housekeeping; it is logged but never leaves the service.
func (n *NotificationService) handleUserSetupCompleted(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.UserSetupCompletedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	n.logger.Info("partner finished first access",
		zap.String("user_id", payload.UserID),
		zap.String("email", event.Actor.Email),
		zap.Time("terms_accepted_at", payload.AcceptedAt))
	return nil
}

func (n *NotificationService) deliver(ctx context.Context, event events.Event, data any) error {
	if n.webhookURL == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := webhookMessage{
		ID:         event.ID,
		Event:      event.Type,
		ReferralID: event.ReferralID,
		ActorEmail: event.Actor.Email,
		OccurredAt: event.Timestamp,
		Data:       data,
	}

	start := time.Now()
	agent := fiber.Post(n.webhookURL).JSON(msg).Timeout(webhookTimeout)
	code, _, errs := agent.Bytes()
	elapsed := time.Since(start)

	if len(errs) > 0 {
		n.logger.Warn("webhook delivery failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Duration("elapsed", elapsed),
			zap.Errors("errors", errs))
		return fmt.Errorf("webhook %s: %w", event.Type, errs[0])
	}
	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		n.logger.Warn("webhook rejected event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Int("status", code),
			zap.Duration("elapsed", elapsed))
		return fmt.Errorf("webhook %s: status %d", event.Type, code)
	}

	n.logger.Debug("webhook delivered",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Int("status", code),
		zap.Duration("elapsed", elapsed))
	return nil
}

func unexpectedPayload(event events.Event) error {
	return fmt.Errorf("%s: unexpected payload %T", event.Type, event.Payload)
}
