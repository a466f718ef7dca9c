package service

import (
	"context"
	"errors"

	"storefront-orders/internal/models"
	"storefront-orders/internal/store"
	"storefront-orders/internal/util"

	"go.uber.org/zap"
)

// OrderReader is the read side of the order store
type OrderReader interface {
	ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.OrderDetail, error)
	GetOrderDetail(ctx context.Context, id string) (*models.OrderDetail, error)
	ListStatusChanges(ctx context.Context, orderID string) ([]models.StatusChange, error)
}

// QueryService serves enriched order listings
type QueryService struct {
	repo   OrderReader
	auth   *OrderService
	logger *zap.Logger
}

// NewQueryService creates a new query service. Caller-scoped queries
// authenticate through orders.
func NewQueryService(repo OrderReader, orders *OrderService) *QueryService {
	return &QueryService{
		repo:   repo,
		auth:   orders,
		logger: util.GetLogger(),
	}
}

// ListAllOrders returns every order newest first, each with its lines,
// product projections and owner name. Only privileged callers may list.
func (q *QueryService) ListAllOrders(ctx context.Context, access Access) (orders []models.OrderDetail, err error) {
	ctx, span := util.StartSpan(ctx, "QueryService.ListAllOrders")
	defer func() { util.EndSpan(span, err) }()

	if !access.Privileged {
		return nil, ErrForbidden
	}

	orders, err = q.repo.ListOrders(ctx, store.OrderFilter{IncludeUser: true})
	if err != nil {
		return nil, persistenceFailure("list orders", err)
	}
	return orders, nil
}

// ListOrdersForCaller returns the authenticated caller's orders newest
// first. An empty history is an empty list, not an error.
func (q *QueryService) ListOrdersForCaller(ctx context.Context, token string) ([]models.OrderDetail, error) {
	caller, err := q.auth.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	return q.ListOrdersFor(ctx, Access{UserID: caller.UserID})
}

// ListOrdersFor returns the orders owned by access.UserID, newest first
func (q *QueryService) ListOrdersFor(ctx context.Context, access Access) (orders []models.OrderDetail, err error) {
	ctx, span := util.StartSpan(ctx, "QueryService.ListOrdersForCaller")
	defer func() { util.EndSpan(span, err) }()

	if access.UserID == "" {
		return nil, ErrUnauthorized
	}

	orders, err = q.repo.ListOrders(ctx, store.OrderFilter{OwnerID: access.UserID})
	if err != nil {
		return nil, persistenceFailure("list caller orders", err)
	}
	return orders, nil
}

// GetOrder returns one enriched order. Orders the caller neither owns nor
// may administer are reported as not found.
func (q *QueryService) GetOrder(ctx context.Context, access Access, orderID string) (*models.OrderDetail, error) {
	detail, err := q.repo.GetOrderDetail(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistenceFailure("get order", err)
	}
	if !access.Privileged && detail.OwnerID != access.UserID {
		return nil, ErrNotFound
	}
	if !access.Privileged {
		detail.User = nil
	}
	return detail, nil
}

// GetOrderHistory returns the order's recorded status changes, oldest first
func (q *QueryService) GetOrderHistory(ctx context.Context, access Access, orderID string) ([]models.StatusChange, error) {
	if _, err := q.GetOrder(ctx, access, orderID); err != nil {
		return nil, err
	}

	changes, err := q.repo.ListStatusChanges(ctx, orderID)
	if err != nil {
		return nil, persistenceFailure("list status history", err)
	}
	return changes, nil
}
