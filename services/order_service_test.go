package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shop-service/apperrors"
	"shop-service/models"
	"shop-service/services"
)

// --- Mock repositories ---

type mockCartRepo struct {
	items map[uuid.UUID][]models.CartItem
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{items: make(map[uuid.UUID][]models.CartItem)}
}

func (m *mockCartRepo) FindByUserID(_ context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	return append([]models.CartItem(nil), m.items[userID]...), nil
}

func (m *mockCartRepo) Create(_ context.Context, item *models.CartItem) error {
	m.items[item.UserID] = append(m.items[item.UserID], *item)
	return nil
}

func (m *mockCartRepo) CreateBatch(_ context.Context, items []models.CartItem) error {
	for _, item := range items {
		m.items[item.UserID] = append(m.items[item.UserID], item)
	}
	return nil
}

func (m *mockCartRepo) DeleteByIDAndUserID(_ context.Context, id, userID uuid.UUID) (int64, error) {
	items := m.items[userID]
	for i, item := range items {
		if item.ID == id {
			m.items[userID] = append(items[:i], items[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

type mockOrderRepo struct {
	orders    map[uuid.UUID]*models.Order
	items     map[uuid.UUID][]models.OrderItem
	cart      *mockCartRepo
	createErr error
}

func newMockOrderRepo(cart *mockCartRepo) *mockOrderRepo {
	return &mockOrderRepo{
		orders: make(map[uuid.UUID]*models.Order),
		items:  make(map[uuid.UUID][]models.OrderItem),
		cart:   cart,
	}
}

func (m *mockOrderRepo) CreateWithItems(_ context.Context, order *models.Order, items []models.OrderItem) error {
	if m.createErr != nil {
		return m.createErr
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	m.orders[order.ID] = order
	m.items[order.ID] = items
	// Cart clearing commits with the order, as one unit.
	delete(m.cart.items, order.UserID)
	return nil
}

func (m *mockOrderRepo) FindByIDAndUserID(_ context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	order, ok := m.orders[orderID]
	if !ok || order.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (m *mockOrderRepo) FindByIntentID(_ context.Context, intentID string) (*models.Order, error) {
	for _, order := range m.orders {
		if order.StripePaymentIntent != nil && *order.StripePaymentIntent == intentID {
			copied := *order
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOrderRepo) FindByUserID(_ context.Context, userID uuid.UUID) ([]models.Order, error) {
	var out []models.Order
	for _, order := range m.orders {
		if order.UserID == userID {
			copied := *order
			copied.Items = m.items[order.ID]
			out = append(out, copied)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) MarkPaid(_ context.Context, orderID uuid.UUID, status string) (bool, error) {
	order, ok := m.orders[orderID]
	if !ok || order.Paid {
		return false, nil
	}
	order.Paid = true
	order.Status = status
	return true, nil
}

type mockUserRepo struct {
	users map[uuid.UUID]*models.User
}

func (m *mockUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

// --- Fake payment gateway ---

type fakeGateway struct {
	intentID      string
	createErr     error
	createCalls   int
	lastAmount    int64
	lastCurrency  string
	confirmResult services.ConfirmResult
	confirmErr    error
	confirmCalls  int
	verifyEvent   *services.WebhookEvent
	verifyErr     error
}

func (f *fakeGateway) CreateIntent(_ context.Context, amountMinor int64, currency string) (string, error) {
	f.createCalls++
	f.lastAmount = amountMinor
	f.lastCurrency = currency
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.intentID, nil
}

func (f *fakeGateway) ConfirmIntent(_ context.Context, _, _ string) (services.ConfirmResult, error) {
	f.confirmCalls++
	if f.confirmErr != nil {
		return services.ConfirmResult{}, f.confirmErr
	}
	return f.confirmResult, nil
}

func (f *fakeGateway) VerifyEvent(_ []byte, _ string) (*services.WebhookEvent, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.verifyEvent, nil
}

// --- Fake event producer ---

type fakeEvents struct {
	sent []models.PaymentEvent
}

func (f *fakeEvents) SendPaymentEvent(_ context.Context, event models.PaymentEvent) error {
	f.sent = append(f.sent, event)
	return nil
}

// --- Helpers ---

type fixture struct {
	cartRepo  *mockCartRepo
	orderRepo *mockOrderRepo
	userRepo  *mockUserRepo
	gateway   *fakeGateway
	events    *fakeEvents
	svc       *services.OrderService
	userID    uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	userID := uuid.New()
	cartRepo := newMockCartRepo()
	orderRepo := newMockOrderRepo(cartRepo)
	userRepo := &mockUserRepo{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, Name: "asha", Phone: "555-0100", Address: "42 Profile Lane"},
	}}
	gateway := &fakeGateway{intentID: "pi_test_123"}
	events := &fakeEvents{}

	svc := services.NewOrderService(orderRepo, cartRepo, userRepo, gateway, events, "inr", logger)
	return &fixture{
		cartRepo:  cartRepo,
		orderRepo: orderRepo,
		userRepo:  userRepo,
		gateway:   gateway,
		events:    events,
		svc:       svc,
		userID:    userID,
	}
}

func price(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func (f *fixture) addCartItem(name, unitPrice string, qty int) models.CartItem {
	product := models.Product{ID: uuid.New(), Name: name, Price: price(unitPrice)}
	item := models.CartItem{
		ID:        uuid.New(),
		UserID:    f.userID,
		ProductID: product.ID,
		Product:   product,
		Quantity:  qty,
	}
	f.cartRepo.items[f.userID] = append(f.cartRepo.items[f.userID], item)
	return item
}

// --- CreateOrder ---

func TestCreateOrder_ComputesExactDecimalTotal(t *testing.T) {
	f := newFixture(t)
	f.addCartItem("Product A", "10.00", 2)
	f.addCartItem("Product B", "5.50", 1)

	snapshot, err := f.svc.CreateOrder(context.Background(), f.userID, "")
	assert.NoError(t, err)
	assert.True(t, snapshot.TotalPrice.Equal(price("25.50")), "total = %s", snapshot.TotalPrice)
	assert.Equal(t, models.OrderStatusPending, snapshot.Status)
	assert.Equal(t, "asha", snapshot.User)
	assert.Equal(t, int64(2550), f.gateway.lastAmount)
	assert.Equal(t, "inr", f.gateway.lastCurrency)
}

func TestCreateOrder_SnapshotsCartAndClearsIt(t *testing.T) {
	f := newFixture(t)
	a := f.addCartItem("Product A", "10.00", 2)
	b := f.addCartItem("Product B", "5.50", 1)

	snapshot, err := f.svc.CreateOrder(context.Background(), f.userID, "")
	assert.NoError(t, err)

	assert.Empty(t, f.cartRepo.items[f.userID], "cart must be empty after order creation")

	items := f.orderRepo.items[snapshot.ID]
	assert.Len(t, items, 2)
	byProduct := make(map[uuid.UUID]models.OrderItem)
	for _, item := range items {
		byProduct[item.ProductID] = item
	}
	assert.Equal(t, a.Quantity, byProduct[a.ProductID].Quantity)
	assert.Equal(t, b.Quantity, byProduct[b.ProductID].Quantity)
	assert.True(t, byProduct[a.ProductID].UnitPrice.Equal(price("10.00")))
	assert.True(t, byProduct[b.ProductID].UnitPrice.Equal(price("5.50")))

	order := f.orderRepo.orders[snapshot.ID]
	assert.False(t, order.Paid)
	assert.Equal(t, "pi_test_123", *order.StripePaymentIntent)
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	f := newFixture(t)

	snapshot, err := f.svc.CreateOrder(context.Background(), f.userID, "")
	assert.Nil(t, snapshot)
	assert.True(t, apperrors.Is(err, apperrors.ErrEmptyCart))
	assert.Zero(t, f.gateway.createCalls, "no intent for an empty cart")
	assert.Empty(t, f.orderRepo.orders)
}

func TestCreateOrder_ShippingAddressFallsBackToProfile(t *testing.T) {
	f := newFixture(t)
	f.addCartItem("Product A", "10.00", 1)

	snapshot, err := f.svc.CreateOrder(context.Background(), f.userID, "")
	assert.NoError(t, err)
	assert.Equal(t, "42 Profile Lane", snapshot.ShippingAddress)
}

func TestCreateOrder_ShippingAddressOverride(t *testing.T) {
	f := newFixture(t)
	f.addCartItem("Product A", "10.00", 1)

	snapshot, err := f.svc.CreateOrder(context.Background(), f.userID, "1 Override Way")
	assert.NoError(t, err)
	assert.Equal(t, "1 Override Way", snapshot.ShippingAddress)
}

func TestCreateOrder_GatewayFailureLeavesCartUntouched(t *testing.T) {
	f := newFixture(t)
	f.addCartItem("Product A", "10.00", 2)
	f.gateway.createErr = apperrors.ErrGatewayUnavailable

	snapshot, err := f.svc.CreateOrder(context.Background(), f.userID, "")
	assert.Nil(t, snapshot)
	assert.True(t, apperrors.Is(err, apperrors.ErrGatewayUnavailable))
	assert.Len(t, f.cartRepo.items[f.userID], 1, "cart untouched on gateway failure")
	assert.Empty(t, f.orderRepo.orders, "no order persisted on gateway failure")
}

func TestCreateOrder_PersistenceFailure(t *testing.T) {
	f := newFixture(t)
	f.addCartItem("Product A", "10.00", 1)
	f.orderRepo.createErr = errors.New("connection reset")

	snapshot, err := f.svc.CreateOrder(context.Background(), f.userID, "")
	assert.Nil(t, snapshot)
	assert.True(t, apperrors.Is(err, apperrors.ErrPersistence))
}

// --- ConfirmPayment ---

func (f *fixture) createPendingOrder(t *testing.T) uuid.UUID {
	t.Helper()
	f.addCartItem("Product A", "10.00", 2)
	f.addCartItem("Product B", "5.50", 1)
	snapshot, err := f.svc.CreateOrder(context.Background(), f.userID, "")
	assert.NoError(t, err)
	return snapshot.ID
}

func TestConfirmPayment_Success(t *testing.T) {
	f := newFixture(t)
	orderID := f.createPendingOrder(t)
	f.gateway.confirmResult = services.ConfirmResult{Succeeded: true, Status: "succeeded"}

	result, err := f.svc.ConfirmPayment(context.Background(), f.userID, orderID, "pm_card_visa")
	assert.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.Equal(t, models.OrderStatusCompleted, result.Status)

	order := f.orderRepo.orders[orderID]
	assert.True(t, order.Paid)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)

	assert.Len(t, f.events.sent, 1)
	assert.Equal(t, "payment_succeeded", f.events.sent[0].Type)
	assert.Equal(t, int64(2550), f.events.sent[0].AmountMinor)
}

func TestConfirmPayment_SecondCallIsAlreadyPaid(t *testing.T) {
	f := newFixture(t)
	orderID := f.createPendingOrder(t)
	f.gateway.confirmResult = services.ConfirmResult{Succeeded: true, Status: "succeeded"}

	_, err := f.svc.ConfirmPayment(context.Background(), f.userID, orderID, "pm_card_visa")
	assert.NoError(t, err)

	result, err := f.svc.ConfirmPayment(context.Background(), f.userID, orderID, "pm_card_visa")
	assert.Nil(t, result)
	assert.True(t, apperrors.Is(err, apperrors.ErrAlreadyPaid))

	order := f.orderRepo.orders[orderID]
	assert.True(t, order.Paid)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.Equal(t, 1, f.gateway.confirmCalls, "second call must not reach the gateway")
}

func TestConfirmPayment_DeclinedLeavesOrderPending(t *testing.T) {
	f := newFixture(t)
	orderID := f.createPendingOrder(t)
	f.gateway.confirmErr = apperrors.ErrPaymentDeclined

	result, err := f.svc.ConfirmPayment(context.Background(), f.userID, orderID, "pm_card_declined")
	assert.Nil(t, result)
	assert.True(t, apperrors.Is(err, apperrors.ErrPaymentDeclined))

	order := f.orderRepo.orders[orderID]
	assert.False(t, order.Paid)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Empty(t, f.events.sent)
}

func TestConfirmPayment_TerminalFailureStaysPending(t *testing.T) {
	f := newFixture(t)
	orderID := f.createPendingOrder(t)
	f.gateway.confirmResult = services.ConfirmResult{Succeeded: false, Status: "requires_payment_method"}

	result, err := f.svc.ConfirmPayment(context.Background(), f.userID, orderID, "pm_bad")
	assert.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.Equal(t, "requires_payment_method", result.Status)

	order := f.orderRepo.orders[orderID]
	assert.False(t, order.Paid)
	assert.Equal(t, models.OrderStatusPending, order.Status)
}

func TestConfirmPayment_OtherUsersOrderIsMasked(t *testing.T) {
	f := newFixture(t)
	orderID := f.createPendingOrder(t)

	result, err := f.svc.ConfirmPayment(context.Background(), uuid.New(), orderID, "pm_card_visa")
	assert.Nil(t, result)
	assert.True(t, apperrors.Is(err, apperrors.ErrOrderNotFound))
}

func TestConfirmPayment_UnknownOrder(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.ConfirmPayment(context.Background(), f.userID, uuid.New(), "pm_card_visa")
	assert.Nil(t, result)
	assert.True(t, apperrors.Is(err, apperrors.ErrOrderNotFound))
}

// --- GetUserOrders ---

func TestGetUserOrders_JoinsProfileContactFields(t *testing.T) {
	f := newFixture(t)
	orderID := f.createPendingOrder(t)

	entries, err := f.svc.GetUserOrders(context.Background(), f.userID)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, orderID, entries[0].ID)
	assert.Equal(t, "asha", entries[0].User)
	assert.Equal(t, "555-0100", entries[0].Phone)
	assert.Equal(t, "42 Profile Lane", entries[0].Address)
	assert.Len(t, entries[0].Products, 2)
	assert.True(t, entries[0].TotalPrice.Equal(price("25.50")))
}
