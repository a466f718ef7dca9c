package service

import (
	"context"
	"errors"
	"math"

	"storefront-orders/internal/models"
	"storefront-orders/internal/store"
	"storefront-orders/internal/util"

	"go.uber.org/zap"
)

// StockRepository is the part of the product store the inventory needs
type StockRepository interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	DecrementStock(ctx context.Context, productID string, quantity int) (bool, error)
}

// Inventory checks and decrements product stock for checkout lines
type Inventory struct {
	repo   StockRepository
	logger *zap.Logger
}

// NewInventory creates a new inventory
func NewInventory(repo StockRepository) *Inventory {
	return &Inventory{
		repo:   repo,
		logger: util.GetLogger(),
	}
}

// CheckAvailability reads live stock for every product in lines and fails
// on the first one that cannot cover its requested quantity. Lines naming
// the same product are summed. Nothing is written.
func (inv *Inventory) CheckAvailability(ctx context.Context, lines []CartLineRequest) error {
	ctx, span := util.StartSpan(ctx, "Inventory.CheckAvailability")
	defer span.End()

	requested := make(map[string]int, len(lines))
	names := make(map[string]string, len(lines))
	order := make([]string, 0, len(lines))
	for _, line := range lines {
		id := string(line.ProductID)
		if _, seen := requested[id]; !seen {
			order = append(order, id)
		}
		requested[id] = addQuantity(requested[id], line.Quantity)
		if names[id] == "" {
			names[id] = line.ProductName
		}
	}

	for _, id := range order {
		available, err := inv.available(ctx, id)
		if err != nil {
			return err
		}
		if available < requested[id] {
			return &InsufficientStockError{
				ProductID:   id,
				ProductName: names[id],
				Requested:   requested[id],
				Available:   available,
			}
		}
	}

	return nil
}

// Decrement applies one conditional decrement per line. The store only
// subtracts when enough stock remains, so stock never goes negative even
// when concurrent checkouts passed the availability check together.
// Decrements already applied are kept when a later line fails.
func (inv *Inventory) Decrement(ctx context.Context, lines []CartLineRequest) error {
	ctx, span := util.StartSpan(ctx, "Inventory.Decrement")
	defer span.End()

	for _, line := range lines {
		id := string(line.ProductID)
		ok, err := inv.repo.DecrementStock(ctx, id, line.Quantity)
		if err != nil {
			return persistenceFailure("decrement stock", err)
		}
		if ok {
			continue
		}

		util.StockDecrementConflictsTotal.Inc()
		available, err := inv.available(ctx, id)
		if err != nil {
			return err
		}
		inv.logger.Warn("Stock changed after availability check",
			zap.String("product_id", id),
			zap.Int("requested", line.Quantity),
			zap.Int("available", available))

		return &InsufficientStockError{
			ProductID:   id,
			ProductName: line.ProductName,
			Requested:   line.Quantity,
			Available:   available,
		}
	}

	return nil
}

// available returns the product's stock, treating a missing product as zero
func (inv *Inventory) available(ctx context.Context, productID string) (int, error) {
	product, err := inv.repo.GetProduct(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, persistenceFailure("read product", err)
	}
	return product.Stock, nil
}

// addQuantity sums two non-negative quantities, saturating at math.MaxInt so
// an oversized cart can never wrap around into a small request.
func addQuantity(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}
