package indicator

import (
	"fmt"
	"strings"
)

// Kind selects the moving average flavour
type Kind string

const (
	KindSMA Kind = "sma"
	KindEMA Kind = "ema"
)

// ParseKind accepts "sma"/"SMA" and "ema"/"EMA"
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindSMA, "":
		return KindSMA, nil
	case KindEMA:
		return KindEMA, nil
	default:
		return "", fmt.Errorf("unknown moving average type %q (want sma or ema)", s)
	}
}

// SMA calculates Simple Moving Average
// Returns slice of length: len(prices) - period + 1
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)
	ma := NewSMA(period)
	for _, p := range prices {
		if v, ok := ma.Update(p); ok {
			result = append(result, v)
		}
	}
	return result
}

// EMA calculates Exponential Moving Average, seeded with the SMA of the first period prices
func EMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)
	ma := NewEMA(period)
	for _, p := range prices {
		if v, ok := ma.Update(p); ok {
			result = append(result, v)
		}
	}
	return result
}

// Rolling is a moving average fed one price at a time.
// Update reports ok once period prices have been seen.
type Rolling interface {
	Update(price float64) (value float64, ok bool)
	Period() int
}

// New builds a rolling average of the given kind
func New(kind Kind, period int) Rolling {
	if kind == KindEMA {
		return NewEMA(period)
	}
	return NewSMA(period)
}

// RollingSMA keeps a ring buffer of the last period prices
type RollingSMA struct {
	period int
	window []float64
	next   int
	filled int
	sum    float64
}

// NewSMA creates a rolling simple moving average
func NewSMA(period int) *RollingSMA {
	return &RollingSMA{period: period, window: make([]float64, period)}
}

func (s *RollingSMA) Period() int { return s.period }

func (s *RollingSMA) Update(price float64) (float64, bool) {
	if s.filled == s.period {
		s.sum -= s.window[s.next]
	} else {
		s.filled++
	}
	s.window[s.next] = price
	s.sum += price
	s.next = (s.next + 1) % s.period

	if s.filled < s.period {
		return 0, false
	}
	return s.sum / float64(s.period), true
}

// RollingEMA is an exponential moving average seeded with a simple average
type RollingEMA struct {
	period     int
	multiplier float64
	seen       int
	sum        float64
	value      float64
}

// NewEMA creates a rolling exponential moving average
func NewEMA(period int) *RollingEMA {
	return &RollingEMA{period: period, multiplier: 2.0 / float64(period+1)}
}

func (e *RollingEMA) Period() int { return e.period }

func (e *RollingEMA) Update(price float64) (float64, bool) {
	e.seen++
	if e.seen < e.period {
		e.sum += price
		return 0, false
	}
	if e.seen == e.period {
		e.sum += price
		e.value = e.sum / float64(e.period)
		return e.value, true
	}
	e.value = (price-e.value)*e.multiplier + e.value
	return e.value, true
}
