package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"storefront-orders/internal/identity"
	"storefront-orders/internal/models"
	"storefront-orders/internal/store"
	"storefront-orders/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WarningCartNotCleared is attached to a placed order whose cart survived
const WarningCartNotCleared = "cart could not be cleared"

// MaxLineQuantity bounds a single cart line; order_items.qty is an INTEGER
const MaxLineQuantity = math.MaxInt32

// OrderRepository is the persistence surface of the order workflow
type OrderRepository interface {
	StockRepository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderLines(ctx context.Context, lines []models.OrderLine) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id, status string) (*models.Order, string, error)
	DeleteCartLines(ctx context.Context, userID string) error
}

// EventPublisher publishes order lifecycle events
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}

// IdempotencyStore remembers which checkout requests already produced an order
type IdempotencyStore interface {
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, string, error)
	CompleteIdempotencyKey(ctx context.Context, key, orderID string, ttl time.Duration) error
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// Options tunes the order service
type Options struct {
	InitialStatus  string
	IdempotencyTTL time.Duration
}

// Access is the capability set a transport established for its caller
type Access struct {
	UserID     string
	Privileged bool
}

// ProductRef is a product identifier that clients may send as a JSON
// string or number.
type ProductRef string

// UnmarshalJSON accepts "p1" as well as 42
func (r *ProductRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = ProductRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("product id must be a string or number: %w", err)
	}
	*r = ProductRef(n.String())
	return nil
}

// CartLineRequest is one cart line submitted at checkout
type CartLineRequest struct {
	ProductID    ProductRef      `json:"id" binding:"required"`
	Quantity     int             `json:"quantity,omitempty" binding:"omitempty,gte=0,lte=2147483647"`
	ProductPrice decimal.Decimal `json:"productPrice"`
	ProductName  string          `json:"productName,omitempty"`
}

// PlaceOrderRequest is the checkout payload
type PlaceOrderRequest struct {
	Cart            []CartLineRequest `json:"cart" binding:"required,min=1,dive"`
	PaymentMethod   string            `json:"paymentMethod" binding:"required"`
	DeliveryAddress string            `json:"deliveryAddress" binding:"required"`
	IdempotencyKey  string            `json:"idempotencyKey,omitempty"`
}

// PlaceOrderResult is a committed order plus any non-fatal warnings
type PlaceOrderResult struct {
	Order    *models.Order
	Lines    []models.OrderLine
	Warnings []string
	Replayed bool
}

// OrderService places orders and drives their status
type OrderService struct {
	repo        OrderRepository
	auth        identity.Authenticator
	inventory   *Inventory
	publisher   EventPublisher
	idempotency IdempotencyStore
	opts        Options
	logger      *zap.Logger
}

// NewOrderService creates a new order service. publisher and idempotency
// may be nil, which disables events and duplicate detection respectively.
func NewOrderService(
	repo OrderRepository,
	auth identity.Authenticator,
	publisher EventPublisher,
	idempotency IdempotencyStore,
	opts Options,
) *OrderService {
	if opts.InitialStatus == "" {
		opts.InitialStatus = models.OrderStatusForDelivery
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}

	return &OrderService{
		repo:        repo,
		auth:        auth,
		inventory:   NewInventory(repo),
		publisher:   publisher,
		idempotency: idempotency,
		opts:        opts,
		logger:      util.GetLogger(),
	}
}

// PlaceOrder converts the submitted cart into an order.
//
// The whole cart is checked against live stock before anything is written.
// After that the order row, its lines and the stock decrements are separate
// writes with no compensation: a failure part way leaves earlier writes in
// place. Clearing the caller's cart is best effort and only produces a
// warning on the result.
func (s *OrderService) PlaceOrder(ctx context.Context, token string, req *PlaceOrderRequest) (*PlaceOrderResult, error) {
	caller, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.PlaceOrderAs(ctx, caller, req)
}

// PlaceOrderAs places an order for a caller the transport already
// authenticated.
func (s *OrderService) PlaceOrderAs(ctx context.Context, caller *identity.Identity, req *PlaceOrderRequest) (result *PlaceOrderResult, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer func() { util.EndSpan(span, err) }()

	start := time.Now()
	defer func() {
		util.PlaceOrderLatency.Observe(time.Since(start).Seconds())
	}()

	if caller == nil || caller.UserID == "" {
		return nil, ErrUnauthorized
	}

	lines, err := normalizeOrderRequest(req)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}

	if key := strings.TrimSpace(req.IdempotencyKey); key != "" && s.idempotency != nil {
		scoped := caller.UserID + ":" + key
		replay, claimed, claimErr := s.claim(ctx, scoped)
		if claimErr != nil {
			return nil, claimErr
		}
		if replay != nil {
			return replay, nil
		}
		if claimed {
			defer func() { s.settleClaim(scoped, result, err) }()
		}
	}

	if err := s.inventory.CheckAvailability(ctx, lines); err != nil {
		s.countFailure(err)
		return nil, err
	}

	order := &models.Order{
		ID:              uuid.New().String(),
		OwnerID:         caller.UserID,
		PaymentMethod:   req.PaymentMethod,
		DeliveryAddress: req.DeliveryAddress,
		Status:          s.opts.InitialStatus,
	}
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, persistenceFailure("create order", err)
	}

	orderLines := make([]models.OrderLine, 0, len(lines))
	for _, line := range lines {
		orderLines = append(orderLines, models.OrderLine{
			OrderID:   order.ID,
			ProductID: string(line.ProductID),
			Quantity:  line.Quantity,
			Price:     line.ProductPrice,
		})
	}
	if err := s.repo.CreateOrderLines(ctx, orderLines); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, persistenceFailure("create order lines", err)
	}

	if err := s.inventory.Decrement(ctx, lines); err != nil {
		s.countFailure(err)
		s.logger.Error("Order committed but stock decrement failed",
			zap.String("order_id", order.ID),
			zap.Error(err))
		return nil, err
	}

	result = &PlaceOrderResult{Order: order, Lines: orderLines}

	if err := s.repo.DeleteCartLines(ctx, caller.UserID); err != nil {
		util.CartClearFailuresTotal.Inc()
		s.logger.Warn("Couldn't clear cart after placing order",
			zap.String("user_id", caller.UserID),
			zap.String("order_id", order.ID),
			zap.Error(err))
		result.Warnings = append(result.Warnings, WarningCartNotCleared)
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("owner_id", order.OwnerID),
		zap.Int("lines", len(orderLines)))

	s.publishOrderPlaced(ctx, order, orderLines)

	return result, nil
}

// UpdateOrderStatus overwrites an order's status. Any label is accepted and
// no transition rules apply; only privileged callers may call it.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, access Access, orderID, status string) (order *models.Order, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrderStatus")
	defer func() { util.EndSpan(span, err) }()

	if !access.Privileged {
		return nil, ErrForbidden
	}
	status = strings.TrimSpace(status)
	if status == "" {
		return nil, invalidRequest("status is required")
	}

	order, previous, err := s.repo.UpdateOrderStatus(ctx, orderID, status)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistenceFailure("update order status", err)
	}

	util.OrderStatusUpdatesTotal.WithLabelValues(status).Inc()
	s.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("previous_status", previous),
		zap.String("status", status),
		zap.String("by", access.UserID))

	if s.publisher != nil {
		event := &models.OrderStatusChangedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderStatusChanged,
				Timestamp: order.UpdatedAt,
			},
			OrderID:        order.ID,
			PreviousStatus: previous,
			Status:         order.Status,
		}
		if err := s.publisher.PublishOrderStatusChanged(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
		}
	}

	return order, nil
}

func (s *OrderService) authenticate(ctx context.Context, token string) (*identity.Identity, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	caller, err := s.auth.Authenticate(ctx, token)
	if errors.Is(err, identity.ErrUnauthenticated) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate caller: %w", err)
	}
	return caller, nil
}

// normalizeOrderRequest returns the checkout lines with the default quantity
// applied. It repeats the binding rules for callers that bypass the HTTP
// layer.
func normalizeOrderRequest(req *PlaceOrderRequest) ([]CartLineRequest, error) {
	if req == nil || len(req.Cart) == 0 {
		return nil, invalidRequest("cart must contain at least one item")
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		return nil, invalidRequest("paymentMethod is required")
	}
	if strings.TrimSpace(req.DeliveryAddress) == "" {
		return nil, invalidRequest("deliveryAddress is required")
	}

	lines := make([]CartLineRequest, len(req.Cart))
	for i, line := range req.Cart {
		if line.ProductID == "" {
			return nil, invalidRequest("cart item %d is missing a product id", i)
		}
		if line.Quantity < 0 || line.Quantity > MaxLineQuantity {
			return nil, invalidRequest("cart item %d has a quantity outside 0..%d", i, MaxLineQuantity)
		}
		if line.ProductPrice.IsNegative() {
			return nil, invalidRequest("cart item %d has a negative price", i)
		}
		if line.Quantity == 0 {
			line.Quantity = 1
		}
		lines[i] = line
	}
	return lines, nil
}

// claim reserves an idempotency key. It returns a replayed result when the
// key already produced an order. Redis trouble disables the check for this
// request rather than failing the checkout.
func (s *OrderService) claim(ctx context.Context, key string) (*PlaceOrderResult, bool, error) {
	claimed, orderID, err := s.idempotency.ClaimIdempotencyKey(ctx, key, s.opts.IdempotencyTTL)
	if err != nil {
		s.logger.Warn("Idempotency check unavailable", zap.Error(err))
		return nil, false, nil
	}
	if claimed {
		return nil, true, nil
	}
	if orderID == "" {
		return nil, false, ErrDuplicateRequest
	}

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, false, persistenceFailure("load replayed order", err)
	}
	util.DuplicateCheckoutsTotal.Inc()
	s.logger.Info("Duplicate checkout detected", zap.String("order_id", orderID))
	return &PlaceOrderResult{Order: order, Replayed: true}, false, nil
}

// settleClaim records the order for a claimed key, or frees the key when
// the checkout failed before an order existed so the client may retry.
func (s *OrderService) settleClaim(key string, result *PlaceOrderResult, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if result != nil && result.Order != nil {
		if err := s.idempotency.CompleteIdempotencyKey(ctx, key, result.Order.ID, s.opts.IdempotencyTTL); err != nil {
			s.logger.Warn("Failed to record idempotency key", zap.Error(err))
		}
		return
	}
	if releaseErr := s.idempotency.ReleaseIdempotencyKey(ctx, key); releaseErr != nil {
		s.logger.Warn("Failed to release idempotency key", zap.Error(releaseErr), zap.NamedError("cause", err))
	}
}

func (s *OrderService) publishOrderPlaced(ctx context.Context, order *models.Order, lines []models.OrderLine) {
	if s.publisher == nil {
		return
	}

	items := make([]models.OrderLineData, 0, len(lines))
	for _, l := range lines {
		items = append(items, models.OrderLineData{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.Price.String(),
		})
	}

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: order.CreatedAt,
		},
		OrderID: order.ID,
		OwnerID: order.OwnerID,
		Status:  order.Status,
		Items:   items,
	}

	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}
}

func (s *OrderService) countFailure(err error) {
	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
		return
	}
	util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
}
