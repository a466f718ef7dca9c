package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront-orders/internal/models"
)

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT id, name, price, image, stock, created_at FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// UpsertProduct inserts a product or overwrites its catalog fields and stock
func (s *Store) UpsertProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (id, name, price, image, stock)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, price = EXCLUDED.price, image = EXCLUDED.image, stock = EXCLUDED.stock
		RETURNING created_at`

	return s.db.GetContext(ctx, &product.CreatedAt, query,
		product.ID, product.Name, product.Price, product.Image, product.Stock)
}

// DecrementStock subtracts quantity from a product's stock only when enough
// stock remains. It reports false when no row matched, meaning the product
// is missing or its stock dropped below quantity.
func (s *Store) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1",
		quantity, productID)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// UpsertProfile stores a user's display name and role
func (s *Store) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, firstname, lastname, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET firstname = EXCLUDED.firstname, lastname = EXCLUDED.lastname, role = EXCLUDED.role`,
		profile.ID, profile.FirstName, profile.LastName, profile.Role)
	return err
}

// GetUserRole returns the role recorded in a user's profile
func (s *Store) GetUserRole(ctx context.Context, userID string) (string, error) {
	var role string
	err := s.db.GetContext(ctx, &role, "SELECT role FROM profiles WHERE id = $1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	return role, err
}
