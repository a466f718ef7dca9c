package store

import (
	"context"
	"fmt"

	"storefront-orders/internal/models"
)

// RecordStatusChange appends change to the order's status history unless the
// event that produced it was already processed. It reports whether a row was
// written.
func (s *Store) RecordStatusChange(ctx context.Context, eventType string, change *models.StatusChange) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		change.EventID, eventType)
	if err != nil {
		return false, fmt.Errorf("failed to mark event processed: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return false, err
	}

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO order_status_history (order_id, status, event_id, changed_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		change.OrderID, change.Status, change.EventID, change.ChangedAt).Scan(&change.ID)
	if err != nil {
		return false, fmt.Errorf("failed to append status history: %w", err)
	}

	return true, tx.Commit()
}

// ListStatusChanges returns an order's status timeline, oldest first
func (s *Store) ListStatusChanges(ctx context.Context, orderID string) ([]models.StatusChange, error) {
	changes := []models.StatusChange{}
	err := s.db.SelectContext(ctx, &changes,
		"SELECT id, order_id, status, event_id, changed_at FROM order_status_history WHERE order_id = $1 ORDER BY changed_at, id",
		orderID)
	return changes, err
}
