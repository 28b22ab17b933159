package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shop-service/apperrors"
	"shop-service/kafka"
	"shop-service/models"
	"shop-service/repository"
)

// OrderSnapshot is returned from order creation.
type OrderSnapshot struct {
	ID              uuid.UUID       `json:"id"`
	User            string          `json:"user"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	Status          string          `json:"status"`
	ShippingAddress string          `json:"shipping_address"`
}

// PaymentResult reports the outcome of a confirmation attempt.
type PaymentResult struct {
	Succeeded bool      `json:"succeeded"`
	OrderID   uuid.UUID `json:"order_id"`
	Status    string    `json:"status"`
}

// OrderHistoryEntry is a read-time projection of an order with the
// user's profile contact fields joined in.
type OrderHistoryEntry struct {
	ID              uuid.UUID          `json:"id"`
	User            string             `json:"user"`
	Products        []models.OrderItem `json:"products"`
	TotalPrice      decimal.Decimal    `json:"total_price"`
	Status          string             `json:"status"`
	ShippingAddress string             `json:"shipping_address"`
	Address         string             `json:"address"`
	Phone           string             `json:"phone"`
	Paid            bool               `json:"paid"`
	CreatedAt       time.Time          `json:"created_at"`
}

// OrderService owns the cart-to-order transition and the order payment
// lifecycle.
type OrderService struct {
	orderRepo repository.OrderRepository
	cartRepo  repository.CartRepository
	userRepo  repository.UserRepository
	gateway   PaymentGateway
	events    kafka.PaymentEventSender
	currency  string
	logger    *zap.Logger
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	userRepo repository.UserRepository,
	gateway PaymentGateway,
	events kafka.PaymentEventSender,
	currency string,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		cartRepo:  cartRepo,
		userRepo:  userRepo,
		gateway:   gateway,
		events:    events,
		currency:  currency,
		logger:    logger,
	}
}

// CreateOrder snapshots the user's cart into an order, requests a
// payment intent and clears the cart. The payment intent is requested
// before any write; on gateway failure nothing is persisted and the
// cart is untouched.
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, shippingOverride string) (*OrderSnapshot, error) {
	cartItems, err := s.cartRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
	}
	if len(cartItems) == 0 {
		return nil, apperrors.ErrEmptyCart
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
	}

	total := decimal.Zero
	for _, item := range cartItems {
		line := item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)
	}

	amountMinor, err := MinorUnits(total, s.currency)
	if err != nil {
		return nil, err
	}

	intentID, err := s.gateway.CreateIntent(ctx, amountMinor, s.currency)
	if err != nil {
		s.logger.Warn("payment intent creation failed",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	shippingAddress := shippingOverride
	if shippingAddress == "" {
		shippingAddress = user.Address
	}

	order := &models.Order{
		UserID:              userID,
		Paid:                false,
		StripePaymentIntent: &intentID,
		ShippingAddress:     shippingAddress,
		TotalPrice:          total,
		Status:              models.OrderStatusPending,
	}

	orderItems := make([]models.OrderItem, 0, len(cartItems))
	for _, item := range cartItems {
		orderItems = append(orderItems, models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.Product.Price,
		})
	}

	// Order, items and cart deletion commit as one unit. The intent
	// already exists at the processor either way; a failed commit
	// leaves it unreferenced, which is safe to retry from scratch.
	if err := s.orderRepo.CreateWithItems(ctx, order, orderItems); err != nil {
		s.logger.Error("order creation failed after intent",
			zap.String("user_id", userID.String()),
			zap.String("intent_id", intentID),
			zap.Error(err),
		)
		return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("total", total.String()),
	)

	return &OrderSnapshot{
		ID:              order.ID,
		User:            user.Name,
		TotalPrice:      total,
		Status:          order.Status,
		ShippingAddress: order.ShippingAddress,
	}, nil
}

// ConfirmPayment confirms the order's stored payment intent with the
// given payment method. A second call on a paid order reports
// ErrAlreadyPaid without touching state.
func (s *OrderService) ConfirmPayment(ctx context.Context, userID, orderID uuid.UUID, paymentMethodID string) (*PaymentResult, error) {
	order, err := s.orderRepo.FindByIDAndUserID(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Cross-user access is masked as not-found.
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
	}

	if order.Paid {
		return nil, apperrors.ErrAlreadyPaid
	}
	if order.StripePaymentIntent == nil {
		return nil, apperrors.ErrOrderNotFound
	}

	result, err := s.gateway.ConfirmIntent(ctx, *order.StripePaymentIntent, paymentMethodID)
	if err != nil {
		// Declines and gateway outages surface unchanged; the order
		// stays pending and may be retried with another method.
		return nil, err
	}

	if !result.Succeeded {
		return &PaymentResult{
			Succeeded: false,
			OrderID:   order.ID,
			Status:    result.Status,
		}, nil
	}

	applied, err := s.orderRepo.MarkPaid(ctx, order.ID, models.OrderStatusCompleted)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
	}
	if applied {
		s.publishPaymentEvent(ctx, order, "payment_succeeded")
	}

	return &PaymentResult{
		Succeeded: true,
		OrderID:   order.ID,
		Status:    models.OrderStatusCompleted,
	}, nil
}

// GetUserOrders lists the user's orders newest first, with the profile
// contact fields joined at read time.
func (s *OrderService) GetUserOrders(ctx context.Context, userID uuid.UUID) ([]OrderHistoryEntry, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
	}

	orders, err := s.orderRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
	}

	entries := make([]OrderHistoryEntry, 0, len(orders))
	for _, order := range orders {
		entries = append(entries, OrderHistoryEntry{
			ID:              order.ID,
			User:            user.Name,
			Products:        order.Items,
			TotalPrice:      order.TotalPrice,
			Status:          order.Status,
			ShippingAddress: order.ShippingAddress,
			Address:         user.Address,
			Phone:           user.Phone,
			Paid:            order.Paid,
			CreatedAt:       order.CreatedAt,
		})
	}
	return entries, nil
}

func (s *OrderService) publishPaymentEvent(ctx context.Context, order *models.Order, eventType string) {
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
		Type:        eventType,
		OrderID:     order.ID.String(),
		UserID:      order.UserID.String(),
		IntentID:    intentID,
		AmountMinor: amountMinor,
		Currency:    s.currency,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.events.SendPaymentEvent(ctx, event); err != nil {
		// Best-effort; never fail the payment path on event publish.
		s.logger.Warn("payment event publish failed",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}
