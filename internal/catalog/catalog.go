// Package catalog loads priced items by id. Semantic search, embeddings and
// how items are indexed upstream are out of scope (spec §1 Non-goals); the
// engine only needs a Get. The in-memory implementation is seeded from YAML
// the way the teacher's pkg/config loads its YAML-backed node configuration.
package catalog

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"negotiation-engine/internal/model"
)

// Store loads a single item by id. Unknown ids return a sentinel so callers
// can map that to apperr.NotFound without catalog importing apperr.
type Store interface {
	Get(itemID string) (model.Item, error)
}

// ErrNotFound is returned by Get for an unknown item id.
var ErrNotFound = fmt.Errorf("catalog: item not found")

// seedItem mirrors model.Item with string-typed decimal fields so it can be
// unmarshaled directly from YAML before conversion.
type seedItem struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	BasePrice  string `yaml:"base_price"`
	FloorPrice string `yaml:"floor_price"`
	Currency   string `yaml:"currency"`
	Active     bool   `yaml:"active"`
}

type seedFile struct {
	Items []seedItem `yaml:"items"`
}

// MemStore is a read-mostly in-memory catalog, guarded by a RWMutex so
// concurrent reads never block each other, grounded on core/access_control.go's
// cached-lookup pattern.
type MemStore struct {
	mu    sync.RWMutex
	items map[string]model.Item
}

func NewMemStore() *MemStore {
	return &MemStore{items: make(map[string]model.Item)}
}

func (s *MemStore) Get(itemID string) (model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[itemID]
	if !ok {
		return model.Item{}, ErrNotFound
	}
	return it, nil
}

// Put inserts or replaces an item, used by seeding and by admin tooling.
func (s *MemStore) Put(it model.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[it.ID] = it
}

// LoadYAML parses a catalog seed file (a list of items with decimal-as-string
// prices) and loads it into the store.
func LoadYAML(s *MemStore, data []byte) error {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("catalog: parse seed file: %w", err)
	}
	for _, si := range f.Items {
		it, err := convertSeedItem(si)
		if err != nil {
			return err
		}
		s.Put(it)
	}
	return nil
}

func convertSeedItem(si seedItem) (model.Item, error) {
	base, err := decimal.NewFromString(si.BasePrice)
	if err != nil {
		return model.Item{}, fmt.Errorf("catalog: item %s: invalid base_price: %w", si.ID, err)
	}
	floor, err := decimal.NewFromString(si.FloorPrice)
	if err != nil {
		return model.Item{}, fmt.Errorf("catalog: item %s: invalid floor_price: %w", si.ID, err)
	}
	it := model.Item{
		ID:         si.ID,
		Name:       si.Name,
		BasePrice:  base,
		FloorPrice: floor,
		Currency:   si.Currency,
		Active:     si.Active,
		UpdatedAt:  time.Now().UTC(),
	}
	if !it.ValidPricing() {
		return model.Item{}, fmt.Errorf("catalog: item %s: base_price below floor_price", si.ID)
	}
	return it, nil
}
