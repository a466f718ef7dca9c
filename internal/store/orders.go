package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront-orders/internal/models"

	"github.com/lib/pq"
)

// OrderFilter narrows an order listing
type OrderFilter struct {
	// OwnerID restricts the listing to one user's orders when set
	OwnerID string
	// IncludeUser attaches the owner's profile projection to each order
	IncludeUser bool
}

type orderRow struct {
	models.Order
	FirstName sql.NullString `db:"firstname"`
	LastName  sql.NullString `db:"lastname"`
}

type orderLineRow struct {
	models.OrderLine
	ProductRef   sql.NullString `db:"product_ref"`
	ProductName  sql.NullString `db:"product_name"`
	ProductImage sql.NullString `db:"product_image"`
}

const orderColumns = "o.order_id, o.owner_id, o.payment_method, o.delivery_address, o.status, o.created_at, o.updated_at"

// CreateOrder inserts an order whose ID has already been assigned
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (order_id, owner_id, payment_method, delivery_address, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		order.ID, order.OwnerID, order.PaymentMethod, order.DeliveryAddress, order.Status).
		Scan(&order.CreatedAt, &order.UpdatedAt)
}

// CreateOrderLines inserts all lines of an order in one statement
func (s *Store) CreateOrderLines(ctx context.Context, lines []models.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO order_items (order_id, product_id, qty, price)
		VALUES (:order_id, :product_id, :qty, :price)`, lines)
	return err
}

// GetOrder retrieves an order by ID
func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders o WHERE o.order_id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderStatus overwrites an order's status and returns the updated row
// together with the status it replaced.
func (s *Store) UpdateOrderStatus(ctx context.Context, id, status string) (*models.Order, string, error) {
	query := `
		UPDATE orders o
		SET status = $1, updated_at = clock_timestamp()
		FROM (SELECT order_id, status AS previous_status FROM orders WHERE order_id = $2 FOR UPDATE) prev
		WHERE o.order_id = prev.order_id
		RETURNING ` + orderColumns + `, prev.previous_status`

	var row struct {
		models.Order
		PreviousStatus string `db:"previous_status"`
	}
	err := s.db.GetContext(ctx, &row, query, status, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, "", err
	}
	return &row.Order, row.PreviousStatus, nil
}

// ListOrders returns orders newest first, each with its lines and product
// projections. It runs one query for the orders and one for all their lines.
func (s *Store) ListOrders(ctx context.Context, filter OrderFilter) ([]models.OrderDetail, error) {
	query := "SELECT " + orderColumns + ", p.firstname, p.lastname FROM orders o LEFT JOIN profiles p ON p.id = o.owner_id"
	var args []interface{}
	if filter.OwnerID != "" {
		query += " WHERE o.owner_id = $1"
		args = append(args, filter.OwnerID)
	}
	query += " ORDER BY o.created_at DESC, o.order_id DESC"

	return s.listOrders(ctx, filter.IncludeUser, query, args...)
}

// GetOrderDetail returns one enriched order including its owner projection
func (s *Store) GetOrderDetail(ctx context.Context, id string) (*models.OrderDetail, error) {
	query := "SELECT " + orderColumns + ", p.firstname, p.lastname FROM orders o LEFT JOIN profiles p ON p.id = o.owner_id WHERE o.order_id = $1"

	details, err := s.listOrders(ctx, true, query, id)
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return &details[0], nil
}

func (s *Store) listOrders(ctx context.Context, includeUser bool, query string, args ...interface{}) ([]models.OrderDetail, error) {
	var orders []orderRow
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if len(orders) == 0 {
		return []models.OrderDetail{}, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}

	var lines []orderLineRow
	err := s.db.SelectContext(ctx, &lines, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.qty, oi.price,
		       pr.id AS product_ref, pr.name AS product_name, pr.image AS product_image
		FROM order_items oi
		LEFT JOIN products pr ON pr.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list order lines: %w", err)
	}

	return assembleOrderDetails(orders, lines, includeUser), nil
}

func assembleOrderDetails(orders []orderRow, lines []orderLineRow, includeUser bool) []models.OrderDetail {
	byOrder := make(map[string][]models.OrderLineDetail, len(orders))
	for _, l := range lines {
		detail := models.OrderLineDetail{OrderLine: l.OrderLine}
		if l.ProductRef.Valid {
			detail.Product = &models.ProductSummary{
				ID:    l.ProductRef.String,
				Name:  l.ProductName.String,
				Image: l.ProductImage.String,
			}
		}
		byOrder[l.OrderID] = append(byOrder[l.OrderID], detail)
	}

	details := make([]models.OrderDetail, 0, len(orders))
	for _, o := range orders {
		items := byOrder[o.ID]
		if items == nil {
			items = []models.OrderLineDetail{}
		}
		detail := models.OrderDetail{Order: o.Order, Items: items}
		if includeUser && (o.FirstName.Valid || o.LastName.Valid) {
			detail.User = &models.UserSummary{
				FirstName: o.FirstName.String,
				LastName:  o.LastName.String,
			}
		}
		details = append(details, detail)
	}
	return details
}
