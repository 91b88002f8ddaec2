package pricefeed

import (
	"math"
	"testing"
)

func newTestSimulator() *Simulator {
	s := NewSimulatorSeeded(42)
	s.Track("AAPL", 260.0, 0.02)
	s.Track("TSLA", 430.0, 0.04)
	return s
}

// TestSampleClamp verifies a single step never moves price outside +-50%
func TestSampleClamp(t *testing.T) {
	s := NewSimulatorSeeded(1)
	// Absurd volatility so the clamp actually engages
	s.Track("WILD", 100.0, 5.0)

	prev := 100.0
	for i := 0; i < 1000; i++ {
		q, err := s.Sample("WILD")
		if err != nil {
			t.Fatalf("sample failed: %v", err)
		}
		lo, hi := 0.5*prev-0.01, 1.5*prev+0.01 // tolerance for boundary rounding
		if q.Price < lo || q.Price > hi {
			t.Fatalf("step %d: price %.2f outside [%.2f, %.2f] (prev %.2f)", i, q.Price, lo, hi, prev)
		}
		if q.Price <= 0 {
			t.Fatalf("step %d: non-positive price %.2f", i, q.Price)
		}
		prev = q.Price
	}
}

// TestSampleQuoteShape checks the derived metrics of a sampled quote
func TestSampleQuoteShape(t *testing.T) {
	s := newTestSimulator()

	for i := 0; i < 50; i++ {
		q, err := s.Sample("AAPL")
		if err != nil {
			t.Fatalf("sample failed: %v", err)
		}
		if q.Bid >= q.Price {
			t.Errorf("bid %.2f not below price %.2f", q.Bid, q.Price)
		}
		if q.Ask <= q.Price {
			t.Errorf("ask %.2f not above price %.2f", q.Ask, q.Price)
		}
		if q.High < q.Price || q.Low > q.Price {
			t.Errorf("price %.2f outside session range [%.2f, %.2f]", q.Price, q.Low, q.High)
		}
		if q.Volume <= 0 {
			t.Errorf("non-positive volume %d", q.Volume)
		}
		if len(q.History) > sessionWindow {
			t.Errorf("history length %d exceeds %d", len(q.History), sessionWindow)
		}
	}
}

// TestHistoryCapacity verifies the FIFO history buffer stays bounded at 100
func TestHistoryCapacity(t *testing.T) {
	s := newTestSimulator()

	for i := 0; i < 150; i++ {
		if _, err := s.Sample("AAPL"); err != nil {
			t.Fatalf("sample failed: %v", err)
		}
	}

	st, err := s.state("AAPL")
	if err != nil {
		t.Fatalf("state lookup failed: %v", err)
	}
	if len(st.history) != historyCap {
		t.Errorf("history length = %d, want %d", len(st.history), historyCap)
	}
	if st.history[len(st.history)-1] != st.current {
		t.Error("newest history point does not match current price")
	}
}

// TestSnapshotIsPureRead verifies Snapshot never advances the series
func TestSnapshotIsPureRead(t *testing.T) {
	s := newTestSimulator()
	s.Sample("AAPL")

	first, err := s.Snapshot("AAPL")
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	second, err := s.Snapshot("AAPL")
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	if first.Price != second.Price || first.Change != second.Change || first.Volume != second.Volume {
		t.Errorf("repeated snapshots differ: %+v vs %+v", first, second)
	}

	if _, err := s.Sample("AAPL"); err != nil {
		t.Fatalf("sample failed: %v", err)
	}
	third, _ := s.Snapshot("AAPL")
	if third.Price == first.Price {
		// A GBM step with nonzero volatility virtually never lands on the
		// same rounded price; equality here means Sample did not step
		t.Log("price unchanged after sample; acceptable but unlikely")
	}
}

// TestSnapshotChangeAgainstBaseline verifies snapshot change metrics use the
// baseline price, not the previous step
func TestSnapshotChangeAgainstBaseline(t *testing.T) {
	s := newTestSimulator()

	for i := 0; i < 30; i++ {
		s.Sample("TSLA")
	}

	q, err := s.Snapshot("TSLA")
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	wantChange := q.Price - 430.0
	if math.Abs(q.Change-wantChange) > 0.02 {
		t.Errorf("change = %.2f, want %.2f (price %.2f vs base 430)", q.Change, wantChange, q.Price)
	}
}

// TestSeedTracksUnknownSymbol verifies seeding registers new symbols at the
// real price
func TestSeedTracksUnknownSymbol(t *testing.T) {
	s := newTestSimulator()

	if _, err := s.Snapshot("IBM"); err == nil {
		t.Fatal("expected error for untracked symbol")
	}

	s.Seed("IBM", 295.50)

	q, err := s.Snapshot("IBM")
	if err != nil {
		t.Fatalf("snapshot after seed failed: %v", err)
	}
	if q.Price != 295.50 {
		t.Errorf("seeded price = %.2f, want 295.50", q.Price)
	}
}

// TestUntrackedSymbolError verifies the sentinel error for unknown symbols
func TestUntrackedSymbolError(t *testing.T) {
	s := newTestSimulator()

	if _, err := s.Sample("NOPE"); err != ErrUntracked {
		t.Errorf("Sample error = %v, want ErrUntracked", err)
	}
	if _, err := s.Snapshot("NOPE"); err != ErrUntracked {
		t.Errorf("Snapshot error = %v, want ErrUntracked", err)
	}
}

// TestTrackIdempotent verifies re-tracking does not reset an active series
func TestTrackIdempotent(t *testing.T) {
	s := newTestSimulator()
	for i := 0; i < 10; i++ {
		s.Sample("AAPL")
	}
	before, _ := s.Snapshot("AAPL")

	s.Track("AAPL", 999.0, 0.5)

	after, _ := s.Snapshot("AAPL")
	if after.Price != before.Price {
		t.Errorf("re-track reset the series: %.2f -> %.2f", before.Price, after.Price)
	}
}
