package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront-orders/internal/models"
)

// MemoryStore keeps every table in process memory. It honours the same
// contracts as Store, including the conditional stock decrement, and backs
// local runs with STORE_DRIVER=memory as well as tests.
type MemoryStore struct {
	mu sync.Mutex

	now func() time.Time

	products  map[string]models.Product
	profiles  map[string]models.Profile
	carts     map[string][]models.CartLine
	orders    map[string]models.Order
	orderSeq  map[string]int64
	lines     []models.OrderLine
	history   []models.StatusChange
	processed map[string]string

	nextSeq int64
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:       time.Now,
		products:  make(map[string]models.Product),
		profiles:  make(map[string]models.Profile),
		carts:     make(map[string][]models.CartLine),
		orders:    make(map[string]models.Order),
		orderSeq:  make(map[string]int64),
		processed: make(map[string]string),
	}
}

// SetClock replaces the time source used for generated timestamps
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) seq() int64 {
	m.nextSeq++
	return m.nextSeq
}

// Ping always succeeds
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// GetProduct retrieves a product by ID
func (m *MemoryStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return &p, nil
}

// UpsertProduct inserts or replaces a product
func (m *MemoryStore) UpsertProduct(ctx context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.products[product.ID]; ok {
		product.CreatedAt = existing.CreatedAt
	} else {
		product.CreatedAt = m.now()
	}
	m.products[product.ID] = *product
	return nil
}

// DecrementStock subtracts quantity when enough stock remains
func (m *MemoryStore) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok || p.Stock < quantity {
		return false, nil
	}
	p.Stock -= quantity
	m.products[productID] = p
	return true, nil
}

// UpsertProfile stores a user's display name and role
func (m *MemoryStore) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.profiles[profile.ID] = *profile
	return nil
}

// GetUserRole returns the role recorded in a user's profile
func (m *MemoryStore) GetUserRole(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[userID]
	if !ok {
		return "", fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	return p.Role, nil
}

// AddCartLine appends a line to a user's cart
func (m *MemoryStore) AddCartLine(ctx context.Context, line *models.CartLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	line.ID = m.seq()
	line.CreatedAt = m.now()
	m.carts[line.UserID] = append(m.carts[line.UserID], *line)
	return nil
}

// GetCartLines returns a user's cart, oldest line first
func (m *MemoryStore) GetCartLines(ctx context.Context, userID string) ([]models.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]models.CartLine{}, m.carts[userID]...), nil
}

// DeleteCartLines removes every cart line owned by userID
func (m *MemoryStore) DeleteCartLines(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.carts, userID)
	return nil
}

// CreateOrder inserts an order whose ID has already been assigned
func (m *MemoryStore) CreateOrder(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	order.CreatedAt = m.now()
	order.UpdatedAt = order.CreatedAt
	m.orders[order.ID] = *order
	m.orderSeq[order.ID] = m.seq()
	return nil
}

// CreateOrderLines inserts all lines of an order
func (m *MemoryStore) CreateOrderLines(ctx context.Context, lines []models.OrderLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range lines {
		if _, ok := m.orders[l.OrderID]; !ok {
			return fmt.Errorf("order %s: %w", l.OrderID, ErrNotFound)
		}
	}
	for _, l := range lines {
		l.ID = m.seq()
		m.lines = append(m.lines, l)
	}
	return nil
}

// GetOrder retrieves an order by ID
func (m *MemoryStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return &o, nil
}

// UpdateOrderStatus overwrites an order's status
func (m *MemoryStore) UpdateOrderStatus(ctx context.Context, id, status string) (*models.Order, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, "", fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	previous := o.Status
	o.Status = status
	o.UpdatedAt = m.now()
	m.orders[id] = o
	return &o, previous, nil
}

// ListOrders returns orders newest first with their lines and projections
func (m *MemoryStore) ListOrders(ctx context.Context, filter OrderFilter) ([]models.OrderDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rows []orderRow
	for _, o := range m.orders {
		if filter.OwnerID != "" && o.OwnerID != filter.OwnerID {
			continue
		}
		rows = append(rows, m.orderRow(o))
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return m.orderSeq[a.ID] > m.orderSeq[b.ID]
	})

	return assembleOrderDetails(rows, m.lineRows(), filter.IncludeUser), nil
}

// GetOrderDetail returns one enriched order including its owner projection
func (m *MemoryStore) GetOrderDetail(ctx context.Context, id string) (*models.OrderDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	details := assembleOrderDetails([]orderRow{m.orderRow(o)}, m.lineRows(), true)
	return &details[0], nil
}

func (m *MemoryStore) orderRow(o models.Order) orderRow {
	row := orderRow{Order: o}
	if p, ok := m.profiles[o.OwnerID]; ok {
		row.FirstName.String, row.FirstName.Valid = p.FirstName, true
		row.LastName.String, row.LastName.Valid = p.LastName, true
	}
	return row
}

func (m *MemoryStore) lineRows() []orderLineRow {
	rows := make([]orderLineRow, 0, len(m.lines))
	for _, l := range m.lines {
		row := orderLineRow{OrderLine: l}
		if p, ok := m.products[l.ProductID]; ok {
			row.ProductRef.String, row.ProductRef.Valid = p.ID, true
			row.ProductName.String, row.ProductName.Valid = p.Name, true
			row.ProductImage.String, row.ProductImage.Valid = p.Image, true
		}
		rows = append(rows, row)
	}
	return rows
}

// RecordStatusChange appends change unless its event was already processed
func (m *MemoryStore) RecordStatusChange(ctx context.Context, eventType string, change *models.StatusChange) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, seen := m.processed[change.EventID]; seen {
		return false, nil
	}
	m.processed[change.EventID] = eventType
	change.ID = m.seq()
	m.history = append(m.history, *change)
	return true, nil
}

// ListStatusChanges returns an order's status timeline, oldest first
func (m *MemoryStore) ListStatusChanges(ctx context.Context, orderID string) ([]models.StatusChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	changes := []models.StatusChange{}
	for _, c := range m.history {
		if c.OrderID == orderID {
			changes = append(changes, c)
		}
	}
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].ChangedAt.Before(changes[j].ChangedAt)
	})
	return changes, nil
}
