package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalog entry with its remaining stock
type Product struct {
	ID        string          `db:"id" json:"id"`
	Name      string          `db:"name" json:"productName"`
	Price     decimal.Decimal `db:"price" json:"productPrice"`
	Image     string          `db:"image" json:"productImage"`
	Stock     int             `db:"stock" json:"stocks"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// CartLine is one pending purchase intent owned by a user
type CartLine struct {
	ID        int64     `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	ProductID string    `db:"product_id" json:"product_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Order represents a committed purchase
type Order struct {
	ID              string    `db:"order_id" json:"order_id"`
	OwnerID         string    `db:"owner_id" json:"owner_id"`
	PaymentMethod   string    `db:"payment_method" json:"payment_method"`
	DeliveryAddress string    `db:"delivery_address" json:"delivery_address"`
	Status          string    `db:"status" json:"status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// OrderLine is an immutable snapshot of one product within an order.
// Price is the unit price the customer saw at checkout.
type OrderLine struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   string          `db:"order_id" json:"order_id"`
	ProductID string          `db:"product_id" json:"product_id"`
	Quantity  int             `db:"qty" json:"qty"`
	Price     decimal.Decimal `db:"price" json:"price"`
}

// ProductSummary is the display projection of a product joined onto an order line
type ProductSummary struct {
	ID    string `json:"id"`
	Name  string `json:"productName"`
	Image string `json:"productImage"`
}

// UserSummary is the display projection of an order owner
type UserSummary struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
}

// OrderLineDetail is an order line enriched with its product
type OrderLineDetail struct {
	OrderLine
	Product *ProductSummary `json:"product"`
}

// OrderDetail is an order enriched with its lines and, for admin listings, its owner
type OrderDetail struct {
	Order
	Items []OrderLineDetail `json:"items"`
	User  *UserSummary      `json:"user,omitempty"`
}

// Profile holds the display name and role of a user
type Profile struct {
	ID        string `db:"id" json:"id"`
	FirstName string `db:"firstname" json:"firstname"`
	LastName  string `db:"lastname" json:"lastname"`
	Role      string `db:"role" json:"role"`
}

// StatusChange is one entry of an order's status timeline
type StatusChange struct {
	ID        int64     `db:"id" json:"id"`
	OrderID   string    `db:"order_id" json:"order_id"`
	Status    string    `db:"status" json:"status"`
	EventID   string    `db:"event_id" json:"event_id"`
	ChangedAt time.Time `db:"changed_at" json:"changed_at"`
}

// Order statuses seen in the storefront. The set is open: admins may
// store any label.
const (
	OrderStatusPending     = "pending"
	OrderStatusForDelivery = "for-delivery"
	OrderStatusInProgress  = "in-progress"
	OrderStatusShipped     = "shipped"
	OrderStatusDelivered   = "delivered"
	OrderStatusCancelled   = "cancelled"
)
