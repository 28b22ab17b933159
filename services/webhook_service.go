package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"shop-service/apperrors"
	"shop-service/kafka"
	"shop-service/models"
	"shop-service/repository"
)

// WebhookService applies asynchronous payment confirmations delivered
// by the processor. Deliveries are at-least-once; applying the same
// event twice must be a no-op.
type WebhookService struct {
	orderRepo repository.OrderRepository
	gateway   PaymentGateway
	events    kafka.PaymentEventSender
	currency  string
	logger    *zap.Logger
}

func NewWebhookService(
	orderRepo repository.OrderRepository,
	gateway PaymentGateway,
	events kafka.PaymentEventSender,
	currency string,
	logger *zap.Logger,
) *WebhookService {
	return &WebhookService{
		orderRepo: orderRepo,
		gateway:   gateway,
		events:    events,
		currency:  currency,
		logger:    logger,
	}
}

// HandleEvent verifies and applies one webhook delivery. A nil return
// means the delivery is acknowledged; unrecognized event types, unknown
// intent ids and redeliveries all acknowledge without mutation so the
// processor does not retry them.
func (s *WebhookService) HandleEvent(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := s.gateway.VerifyEvent(payload, sigHeader)
	if err != nil {
		s.logger.Warn("webhook verification failed", zap.Error(err))
		return err
	}

	if event.Type != EventTypePaymentSucceeded {
		s.logger.Info("ignoring webhook event type", zap.String("event_type", event.Type))
		return nil
	}

	order, err := s.orderRepo.FindByIntentID(ctx, event.IntentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// The intent may belong to another environment; ack it so
			// the processor stops retrying.
			s.logger.Info("webhook intent matches no order",
				zap.String("intent_id", event.IntentID),
			)
			return nil
		}
		return apperrors.Wrap(apperrors.ErrPersistence, err)
	}

	applied, err := s.orderRepo.MarkPaid(ctx, order.ID, models.OrderStatusPaid)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, err)
	}
	if !applied {
		// Redelivery, or the synchronous confirm path won the race.
		s.logger.Info("webhook already applied",
			zap.String("order_id", order.ID.String()),
			zap.String("event_id", event.ID),
		)
		return nil
	}

	s.logger.Info("order marked paid via webhook",
		zap.String("order_id", order.ID.String()),
		zap.String("intent_id", event.IntentID),
	)
	s.publishPaymentEvent(ctx, order)
	return nil
}

func (s *WebhookService) publishPaymentEvent(ctx context.Context, order *models.Order) {
	if s.events == nil {
		return
	}

	amountMinor, err := MinorUnits(order.TotalPrice, s.currency)
	if err != nil {
		amountMinor = 0
	}
	intentID := ""
	if order.StripePaymentIntent != nil {
		intentID = *order.StripePaymentIntent
	}

	event := models.PaymentEvent{
		Type:        "payment_succeeded",
		OrderID:     order.ID.String(),
		UserID:      order.UserID.String(),
		IntentID:    intentID,
		AmountMinor: amountMinor,
		Currency:    s.currency,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.events.SendPaymentEvent(ctx, event); err != nil {
		s.logger.Warn("payment event publish failed",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}
