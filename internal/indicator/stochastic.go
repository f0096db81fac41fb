package indicator

// Stochastic is the full stochastic oscillator fed one bar at a time.
// Raw %K = (close - lowest low) / (highest high - lowest low) * 100 over kPeriod bars,
// %K is the SMA of raw %K over smooth bars and %D the SMA of %K over dPeriod bars.
type Stochastic struct {
	kPeriod int
	highs   []float64
	lows    []float64
	next    int
	filled  int

	smooth *RollingSMA
	d      *RollingSMA
}

// NewStochastic creates a full stochastic oscillator
func NewStochastic(kPeriod, smooth, dPeriod int) *Stochastic {
	return &Stochastic{
		kPeriod: kPeriod,
		highs:   make([]float64, kPeriod),
		lows:    make([]float64, kPeriod),
		smooth:  NewSMA(smooth),
		d:       NewSMA(dPeriod),
	}
}

// Warmup is the number of bars before %D is first defined
func (s *Stochastic) Warmup() int {
	return s.kPeriod + s.smooth.Period() - 1 + s.d.Period() - 1
}

// Update adds a bar and returns %K and %D once both are defined.
// A window whose high equals its low yields a raw %K of 50.
func (s *Stochastic) Update(high, low, close float64) (k, d float64, ok bool) {
	s.highs[s.next] = high
	s.lows[s.next] = low
	s.next = (s.next + 1) % s.kPeriod
	if s.filled < s.kPeriod {
		s.filled++
	}
	if s.filled < s.kPeriod {
		return 0, 0, false
	}

	hh, ll := s.highs[0], s.lows[0]
	for i := 1; i < s.kPeriod; i++ {
		hh = max(hh, s.highs[i])
		ll = min(ll, s.lows[i])
	}
	raw := 50.0
	if hh > ll {
		raw = (close - ll) / (hh - ll) * 100
	}

	k, ok = s.smooth.Update(raw)
	if !ok {
		return 0, 0, false
	}
	d, ok = s.d.Update(k)
	if !ok {
		return 0, 0, false
	}
	return k, d, true
}
