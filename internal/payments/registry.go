package payments

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

// Registry resolves a gateway by provider.
type Registry struct {
	mu       sync.RWMutex
	gateways map[reservations.Provider]Gateway
}

func NewRegistry(gws ...Gateway) *Registry {
	r := &Registry{gateways: make(map[reservations.Provider]Gateway, len(gws))}
	for _, g := range gws {
		r.Register(g)
	}
	return r
}

// Register replaces any gateway already bound to the same provider.
func (r *Registry) Register(g Gateway) {
	r.mu.Lock()
	r.gateways[g.Provider()] = g
	r.mu.Unlock()
}

func (r *Registry) Get(p reservations.Provider) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gateways[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", reservations.ErrUnknownProvider, p)
	}
	return g, nil
}

func (r *Registry) Providers() []reservations.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]reservations.Provider, 0, len(r.gateways))
	for p := range r.gateways {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
