package store

import (
	"context"

	"storefront-orders/internal/models"
)

// AddCartLine appends a line to a user's cart
func (s *Store) AddCartLine(ctx context.Context, line *models.CartLine) error {
	query := `
		INSERT INTO cart (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	return s.db.QueryRowxContext(ctx, query, line.UserID, line.ProductID, line.Quantity).
		Scan(&line.ID, &line.CreatedAt)
}

// GetCartLines returns a user's cart, oldest line first
func (s *Store) GetCartLines(ctx context.Context, userID string) ([]models.CartLine, error) {
	lines := []models.CartLine{}
	err := s.db.SelectContext(ctx, &lines,
		"SELECT id, user_id, product_id, quantity, created_at FROM cart WHERE user_id = $1 ORDER BY id", userID)
	return lines, err
}

// DeleteCartLines removes every cart line owned by userID
func (s *Store) DeleteCartLines(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart WHERE user_id = $1", userID)
	return err
}
