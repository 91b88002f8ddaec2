package instrument

import (
	"fmt"
	"sort"
	"sync"
)

// Instrument describes a tradable symbol and the parameters used to seed
// its simulated price series.
type Instrument struct {
	Symbol   string // e.g., "AAPL"
	Name     string // e.g., "Apple Inc."
	Exchange string // e.g., "NASDAQ"
	Type     string // e.g., "EQUITY"

	// Simulation parameters
	BasePrice  float64 // reference price until a real quote seeds the series
	Volatility float64 // per-step Gaussian shock stddev (0.02 = 2%)
}

// Registry manages the supported instrument set in a thread-safe manner
type Registry struct {
	mu          sync.RWMutex
	instruments map[string]Instrument
}

// NewRegistry creates an empty instrument registry
func NewRegistry() *Registry {
	return &Registry{instruments: make(map[string]Instrument)}
}

// Register adds an instrument to the registry
// Returns error if an instrument with the same symbol already exists
func (r *Registry) Register(inst Instrument) error {
	if inst.Symbol == "" {
		return fmt.Errorf("cannot register instrument without symbol")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instruments[inst.Symbol]; exists {
		return fmt.Errorf("instrument %s already registered", inst.Symbol)
	}

	r.instruments[inst.Symbol] = inst
	return nil
}

// Get retrieves an instrument by symbol
func (r *Registry) Get(symbol string) (Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.instruments[symbol]
	return inst, ok
}

// Has reports whether a symbol is in the supported set
func (r *Registry) Has(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.instruments[symbol]
	return ok
}

// List returns all registered instruments, sorted by symbol for stable output
func (r *Registry) List() []Instrument {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Instrument, 0, len(r.instruments))
	for _, inst := range r.instruments {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// DefaultSet returns the fixed instrument universe served by the simulator.
// Base prices and volatilities follow the historical calibration of the
// simulated series (TSLA trades noisier than IBM).
func DefaultSet() []Instrument {
	return []Instrument{
		{Symbol: "AAPL", Name: "Apple Inc.", Exchange: "NASDAQ", Type: "EQUITY", BasePrice: 260.0, Volatility: 0.02},
		{Symbol: "TSLA", Name: "Tesla Inc.", Exchange: "NASDAQ", Type: "EQUITY", BasePrice: 430.0, Volatility: 0.04},
		{Symbol: "IBM", Name: "International Business Machines", Exchange: "NYSE", Type: "EQUITY", BasePrice: 295.0, Volatility: 0.015},
	}
}

// NewDefaultRegistry creates a registry pre-populated with DefaultSet
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, inst := range DefaultSet() {
		// Symbols in DefaultSet are unique; Register cannot fail here
		_ = r.Register(inst)
	}
	return r
}
