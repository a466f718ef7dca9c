package service

import (
	"context"
	"testing"

	"storefront-orders/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListOrdersForCaller(t *testing.T) {
	ctx := context.Background()
	m := newTestStore(t)
	seedProduct(t, m, "p1", 10, "2")
	seedProduct(t, m, "p2", 10, "3")
	orders := newTestOrderService(m, nil, nil)
	queries := NewQueryService(m, orders)

	empty, err := queries.ListOrdersForCaller(ctx, "alice-token")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	first, err := orders.PlaceOrder(ctx, "alice-token", placeRequest(line("p1", 1, "2")))
	require.NoError(t, err)
	_, err = orders.PlaceOrder(ctx, "bob-token", placeRequest(line("p1", 1, "2")))
	require.NoError(t, err)
	second, err := orders.PlaceOrder(ctx, "alice-token", placeRequest(line("p1", 1, "2"), line("p2", 2, "3")))
	require.NoError(t, err)

	listed, err := queries.ListOrdersForCaller(ctx, "alice-token")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, second.Order.ID, listed[0].ID, "newest first")
	assert.Equal(t, first.Order.ID, listed[1].ID)

	require.Len(t, listed[0].Items, 2)
	require.NotNil(t, listed[0].Items[1].Product)
	assert.Equal(t, "Product p2", listed[0].Items[1].Product.Name)
	assert.Equal(t, "p2.png", listed[0].Items[1].Product.Image)
	assert.Nil(t, listed[0].User)

	again, err := queries.ListOrdersForCaller(ctx, "alice-token")
	require.NoError(t, err)
	assert.Equal(t, listed, again)

	byAccess, err := queries.ListOrdersFor(ctx, Access{UserID: alice.UserID})
	require.NoError(t, err)
	assert.Equal(t, listed, byAccess)

	_, err = queries.ListOrdersForCaller(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = queries.ListOrdersFor(ctx, Access{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestListAllOrders(t *testing.T) {
	ctx := context.Background()
	m := newTestStore(t)
	seedProduct(t, m, "p1", 10, "2")
	require.NoError(t, m.UpsertProfile(ctx, &models.Profile{ID: alice.UserID, FirstName: "Alice", LastName: "Lim", Role: "customer"}))
	orders := newTestOrderService(m, nil, nil)
	queries := NewQueryService(m, orders)

	_, err := queries.ListAllOrders(ctx, Access{UserID: alice.UserID})
	assert.ErrorIs(t, err, ErrForbidden)

	all, err := queries.ListAllOrders(ctx, Access{UserID: admin.UserID, Privileged: true})
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)

	_, err = orders.PlaceOrder(ctx, "alice-token", placeRequest(line("p1", 1, "2")))
	require.NoError(t, err)
	_, err = orders.PlaceOrder(ctx, "bob-token", placeRequest(line("p1", 1, "2")))
	require.NoError(t, err)

	all, err = queries.ListAllOrders(ctx, Access{UserID: admin.UserID, Privileged: true})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, bob.UserID, all[0].OwnerID)
	assert.Nil(t, all[0].User, "owners without a profile have no projection")
	require.NotNil(t, all[1].User)
	assert.Equal(t, "Alice", all[1].User.FirstName)
	assert.Equal(t, "Lim", all[1].User.LastName)
}

func TestGetOrderAndHistory(t *testing.T) {
	ctx := context.Background()
	m := newTestStore(t)
	seedProduct(t, m, "p1", 10, "2")
	pub := &recordingPublisher{}
	orders := newTestOrderService(m, pub, nil)
	queries := NewQueryService(m, orders)
	history := NewHistoryService(m)

	placed, err := orders.PlaceOrder(ctx, "alice-token", placeRequest(line("p1", 1, "2")))
	require.NoError(t, err)
	_, err = orders.UpdateOrderStatus(ctx, Access{UserID: admin.UserID, Privileged: true}, placed.Order.ID, models.OrderStatusShipped)
	require.NoError(t, err)

	require.NoError(t, history.HandleOrderPlaced(ctx, pub.placed[0]))
	require.NoError(t, history.HandleOrderStatusChanged(ctx, pub.changed[0]))
	require.NoError(t, history.HandleOrderStatusChanged(ctx, pub.changed[0]), "redelivery is ignored")

	detail, err := queries.GetOrder(ctx, Access{UserID: alice.UserID}, placed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, detail.Status)

	_, err = queries.GetOrder(ctx, Access{UserID: bob.UserID}, placed.Order.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = queries.GetOrder(ctx, Access{UserID: admin.UserID, Privileged: true}, placed.Order.ID)
	require.NoError(t, err)

	_, err = queries.GetOrder(ctx, Access{UserID: alice.UserID}, "order-123")
	assert.ErrorIs(t, err, ErrNotFound)

	changes, err := queries.GetOrderHistory(ctx, Access{UserID: alice.UserID}, placed.Order.ID)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, models.OrderStatusForDelivery, changes[0].Status)
	assert.Equal(t, models.OrderStatusShipped, changes[1].Status)

	_, err = queries.GetOrderHistory(ctx, Access{UserID: bob.UserID}, placed.Order.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
