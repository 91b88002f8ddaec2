package pricefeed

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"
)

// ErrUntracked is returned for symbols the simulator has never seen
var ErrUntracked = errors.New("symbol not tracked")

const (
	historyCap    = 100 // FIFO price history per symbol
	sessionWindow = 20  // points used for session high/low and charts

	// Single-step drift range: slight positive bias
	driftMin = -0.0001
	driftMax = 0.0003

	// Bid/ask spread range as a fraction of price
	spreadMin = 0.001
	spreadMax = 0.005

	// snapshotSpread is the nominal spread used by pure-read snapshots
	// (midpoint of the sampled spread range, keeps Snapshot deterministic)
	snapshotSpread = 0.003

	defaultVolatility = 0.02

	// Probability that seeding an already-tracked symbol re-anchors the
	// simulated series to the real-market reference
	reanchorChance = 0.1
)

// Quote is the externally visible view of one symbol's price state.
// Monetary fields are rounded to 2 decimal places at this boundary;
// the simulator keeps full precision internally.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Volume        int64     `json:"volume"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Bid           float64   `json:"bid"`
	Ask           float64   `json:"ask"`
	History       []float64 `json:"priceHistory"` // last 20 points for charts
}

// symbolState holds one symbol's simulated price series.
// All mutation happens under mu; each symbol owns its own RNG so that
// concurrent steps on different symbols never contend.
type symbolState struct {
	mu         sync.Mutex
	rng        *rand.Rand
	current    float64
	base       float64 // reference for total-change metrics
	volatility float64
	history    []float64
	volume     int64
	updatedAt  time.Time
}

// Simulator generates stochastic price series, one per tracked symbol,
// using a geometric-Brownian-motion style step function.
type Simulator struct {
	mu      sync.RWMutex
	states  map[string]*symbolState
	seed    int64 // master seed for per-symbol RNGs
	tracked int64 // registration counter, diversifies per-symbol seeds
}

// NewSimulator creates a simulator with time-based randomness
func NewSimulator() *Simulator {
	return NewSimulatorSeeded(time.Now().UnixNano())
}

// NewSimulatorSeeded creates a simulator with a fixed master seed.
// Symbols tracked in the same order produce identical series; used by tests.
func NewSimulatorSeeded(seed int64) *Simulator {
	return &Simulator{
		states: make(map[string]*symbolState),
		seed:   seed,
	}
}

// Track registers a symbol with a starting price and volatility.
// Tracking an already-known symbol is a no-op.
func (s *Simulator) Track(symbol string, startPrice, volatility float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.states[symbol]; ok {
		return
	}
	s.tracked++
	rng := rand.New(rand.NewSource(s.seed + s.tracked))
	s.states[symbol] = &symbolState{
		rng:        rng,
		current:    startPrice,
		base:       startPrice,
		volatility: volatility,
		history:    []float64{startPrice},
		volume:     1000 + rng.Int63n(9001), // 1000..10000
		updatedAt:  time.Now(),
	}
}

// Seed calibrates a symbol against a real-market price. Unknown symbols are
// tracked starting at the real price; known symbols re-anchor with small
// probability so the simulated series drifts back toward reality over time.
func (s *Simulator) Seed(symbol string, realPrice float64) {
	s.mu.RLock()
	st, ok := s.states[symbol]
	s.mu.RUnlock()

	if !ok {
		s.Track(symbol, realPrice, defaultVolatility)
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.rng.Float64() < reanchorChance {
		st.base = realPrice
		st.current = realPrice
	}
}

// Sample advances the symbol's price one simulation step and returns the
// resulting quote. It is a stochastic step function, not a pure read: every
// call mutates the series.
func (s *Simulator) Sample(symbol string) (Quote, error) {
	st, err := s.state(symbol)
	if err != nil {
		return Quote{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	prev := st.current
	drift := uniform(st.rng, driftMin, driftMax)
	shock := st.rng.NormFloat64() * st.volatility

	newPrice := prev * (1 + drift + shock)
	// Stability guard: a single step never moves price outside +-50%
	newPrice = math.Max(newPrice, prev*0.5)
	newPrice = math.Min(newPrice, prev*1.5)

	change := newPrice - prev
	changePct := change / prev * 100

	st.current = newPrice
	st.history = append(st.history, newPrice)
	if len(st.history) > historyCap {
		st.history = st.history[1:]
	}

	// Bigger moves simulate heavier trading
	volumeMult := 1 + math.Abs(changePct)/10
	st.volume = int64(float64(st.volume) * uniform(st.rng, 0.7, 1.3) * volumeMult)
	st.updatedAt = time.Now()

	high, low := sessionRange(st.history, sessionWindow, newPrice)

	spread := uniform(st.rng, spreadMin, spreadMax)
	return Quote{
		Symbol:        symbol,
		Price:         round2(newPrice),
		Change:        round2(change),
		ChangePercent: round2(changePct),
		Volume:        st.volume,
		High:          round2(high),
		Low:           round2(low),
		Bid:           round2(newPrice * (1 - spread/2)),
		Ask:           round2(newPrice * (1 + spread/2)),
		History:       tail(st.history, sessionWindow),
	}, nil
}

// Snapshot returns the symbol's current state without stepping the series.
// It is a pure read: change metrics are computed against the baseline price
// and the spread is nominal rather than sampled, so repeated snapshots of an
// idle symbol are identical.
func (s *Simulator) Snapshot(symbol string) (Quote, error) {
	st, err := s.state(symbol)
	if err != nil {
		return Quote{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	cur := st.current
	change := cur - st.base
	changePct := change / st.base * 100

	high, low := sessionRange(st.history, len(st.history), cur)

	return Quote{
		Symbol:        symbol,
		Price:         round2(cur),
		Change:        round2(change),
		ChangePercent: round2(changePct),
		Volume:        st.volume,
		High:          round2(high),
		Low:           round2(low),
		Bid:           round2(cur * (1 - snapshotSpread/2)),
		Ask:           round2(cur * (1 + snapshotSpread/2)),
		History:       tail(st.history, sessionWindow),
	}, nil
}

func (s *Simulator) state(symbol string) (*symbolState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[symbol]
	if !ok {
		return nil, ErrUntracked
	}
	return st, nil
}

// sessionRange returns max/min over the most recent window points, or the
// current price alone when history has a single point.
func sessionRange(history []float64, window int, current float64) (high, low float64) {
	if len(history) <= 1 {
		return current, current
	}
	pts := tail(history, window)
	high, low = pts[0], pts[0]
	for _, p := range pts[1:] {
		if p > high {
			high = p
		}
		if p < low {
			low = p
		}
	}
	return high, low
}

func tail(history []float64, n int) []float64 {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]float64, len(history))
	copy(out, history)
	return out
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
