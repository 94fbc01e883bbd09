package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a catalog entry. The catalog itself (semantic search, embeddings,
// how items are indexed) is an external collaborator; the engine only needs
// to load one by id. FloorPrice must never cross the engine boundary.
type Item struct {
	ID          string
	Name        string
	BasePrice   decimal.Decimal
	FloorPrice  decimal.Decimal
	Currency    string
	Active      bool
	UpdatedAt   time.Time
}

// ValidPricing reports whether the item's base/floor invariant holds for an
// active item: base >= floor.
func (it Item) ValidPricing() bool {
	if !it.Active {
		return true
	}
	return it.BasePrice.GreaterThanOrEqual(it.FloorPrice)
}
