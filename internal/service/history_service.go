package service

import (
	"context"
	"time"

	"storefront-orders/internal/models"
	"storefront-orders/internal/util"

	"go.uber.org/zap"
)

// HistoryRepository stores the status timeline of orders
type HistoryRepository interface {
	RecordStatusChange(ctx context.Context, eventType string, change *models.StatusChange) (bool, error)
}

// HistoryService turns order events into status history rows
type HistoryService struct {
	repo   HistoryRepository
	logger *zap.Logger
}

// NewHistoryService creates a new history service
func NewHistoryService(repo HistoryRepository) *HistoryService {
	return &HistoryService{
		repo:   repo,
		logger: util.GetLogger(),
	}
}

// HandleOrderPlaced records the initial status of a new order
func (h *HistoryService) HandleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return h.record(ctx, event.EventType, &models.StatusChange{
		OrderID:   event.OrderID,
		Status:    event.Status,
		EventID:   event.EventID,
		ChangedAt: eventTime(event.Timestamp),
	})
}

// HandleOrderStatusChanged records an admin status overwrite
func (h *HistoryService) HandleOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return h.record(ctx, event.EventType, &models.StatusChange{
		OrderID:   event.OrderID,
		Status:    event.Status,
		EventID:   event.EventID,
		ChangedAt: eventTime(event.Timestamp),
	})
}

func (h *HistoryService) record(ctx context.Context, eventType string, change *models.StatusChange) error {
	ctx, span := util.StartSpan(ctx, "HistoryService.record")
	defer span.End()

	written, err := h.repo.RecordStatusChange(ctx, eventType, change)
	if err != nil {
		h.logger.Error("Failed to record status change",
			zap.String("order_id", change.OrderID),
			zap.String("event_id", change.EventID),
			zap.Error(err))
		return err
	}
	if !written {
		h.logger.Info("Event already processed, skipping", zap.String("event_id", change.EventID))
		return nil
	}

	util.HistoryEventsRecordedTotal.WithLabelValues(eventType).Inc()
	h.logger.Debug("Status change recorded",
		zap.String("order_id", change.OrderID),
		zap.String("status", change.Status))
	return nil
}

func eventTime(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now().UTC()
	}
	return ts
}
