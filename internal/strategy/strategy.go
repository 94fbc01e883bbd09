// Package strategy defines the pluggable pricing decision interface (spec
// §4.4) and a name->constructor factory registry, directly modeled on
// core/opcode_dispatcher.go's Register/Dispatch pattern: collisions panic at
// start-up (never at request time), lookups are RWMutex-guarded.
package strategy

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"negotiation-engine/internal/model"
)

// Strategy is the single-operation pricing decision contract. Implementations
// must never let the floor price leak into the returned Decision or error.
// The ctx carries the inbound request's deadline and correlation attributes
// (spec §4.4/§5) to any out-of-process strategy, such as the llm strategy's
// model call.
type Strategy interface {
	Evaluate(ctx context.Context, item model.Item, bid decimal.Decimal, reputation *float64, correlationID string) (model.Decision, error)
}

// Constructor builds a Strategy from a config bag. cfg keys are
// strategy-specific (e.g. "high_value_threshold" for the rule strategy).
type Constructor func(cfg map[string]string) (Strategy, error)

var (
	mu       sync.RWMutex
	registry = make(map[string]Constructor)
)

// Register binds a strategy name to its constructor. It panics on a
// duplicate name, matching core/opcode_dispatcher.go's Register: a name
// collision is a programming error caught at init time, not a runtime
// condition to recover from.
func Register(name string, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("strategy: duplicate registration for %q", name))
	}
	registry[name] = ctor
}

// Build looks up a registered constructor by name and invokes it.
func Build(name string, cfg map[string]string) (Strategy, error) {
	mu.RLock()
	ctor, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("strategy: no constructor registered for %q", name)
	}
	return ctor(cfg)
}

func init() {
	Register("rule", newRuleStrategy)
}
