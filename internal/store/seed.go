package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"storefront-orders/internal/models"
)

// Seed is catalog and account data applied at boot
type Seed struct {
	Products []models.Product  `json:"products"`
	Profiles []models.Profile  `json:"profiles"`
	Carts    []models.CartLine `json:"carts"`
}

// Seeder is the write side a seed is applied to
type Seeder interface {
	UpsertProduct(ctx context.Context, product *models.Product) error
	UpsertProfile(ctx context.Context, profile *models.Profile) error
	AddCartLine(ctx context.Context, line *models.CartLine) error
	GetCartLines(ctx context.Context, userID string) ([]models.CartLine, error)
}

// LoadSeedFile reads a JSON seed document
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return &seed, nil
}

// ApplySeed upserts products and profiles. Cart lines are only added for
// users whose cart is empty, so applying the same seed twice is harmless.
func ApplySeed(ctx context.Context, target Seeder, seed *Seed) error {
	for i := range seed.Products {
		if seed.Products[i].Stock < 0 {
			return fmt.Errorf("product %s: stock must not be negative", seed.Products[i].ID)
		}
		if err := target.UpsertProduct(ctx, &seed.Products[i]); err != nil {
			return fmt.Errorf("failed to seed product %s: %w", seed.Products[i].ID, err)
		}
	}

	for i := range seed.Profiles {
		if err := target.UpsertProfile(ctx, &seed.Profiles[i]); err != nil {
			return fmt.Errorf("failed to seed profile %s: %w", seed.Profiles[i].ID, err)
		}
	}

	filled := make(map[string]bool)
	for i := range seed.Carts {
		line := &seed.Carts[i]
		skip, seen := filled[line.UserID]
		if !seen {
			existing, err := target.GetCartLines(ctx, line.UserID)
			if err != nil {
				return fmt.Errorf("failed to read cart of %s: %w", line.UserID, err)
			}
			skip = len(existing) > 0
			filled[line.UserID] = skip
		}
		if skip {
			continue
		}
		if err := target.AddCartLine(ctx, line); err != nil {
			return fmt.Errorf("failed to seed cart of %s: %w", line.UserID, err)
		}
	}

	return nil
}
