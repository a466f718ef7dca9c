package worker

import (
	"context"

	"storefront-orders/internal/broker"
	"storefront-orders/internal/service"
	"storefront-orders/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Source delivers order events to a handler until its context ends
type Source interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// HistoryWorker records the status timeline of orders from their events
type HistoryWorker struct {
	source       Source
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewHistoryWorker creates a new history worker
func NewHistoryWorker(source Source, history *service.HistoryService) *HistoryWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnOrderPlaced(history.HandleOrderPlaced)
	eventHandler.OnOrderStatusChanged(history.HandleOrderStatusChanged)

	return &HistoryWorker{
		source:       source,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start consumes events until ctx is cancelled
func (w *HistoryWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting order history worker...")
	return w.source.StartConsuming(ctx, w.Handle)
}

// Handle processes a single message
func (w *HistoryWorker) Handle(ctx context.Context, msg kafka.Message) error {
	return w.eventHandler.HandleMessage(ctx, msg)
}

// Stop stops the worker
func (w *HistoryWorker) Stop() error {
	w.logger.Info("Stopping order history worker...")
	return w.source.Close()
}
