package runtime

import (
	"sort"

	"github.com/khquant-lab/khquant/pkg/errors"
)

// Factory builds a fresh strategy instance per run.
type Factory func() Strategy

var registry = map[string]Factory{}

// Register makes a strategy available to the CLI under its name. Built-ins
// register from init functions; callers may add their own before resolving.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// Resolve returns a new instance of the named strategy.
func Resolve(name string) (Strategy, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeStrategyNotFound, "unknown strategy %q", name)
	}
	return factory(), nil
}

// Names lists the registered strategies in stable order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
