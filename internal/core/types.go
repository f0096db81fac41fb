package core

import (
	"fmt"
	"math"
	"time"
)

// Direction is the side of a position
type Direction int

const (
	Flat Direction = iota
	Long
	Short
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "flat"
	}
}

// Sign returns +1 for long, -1 for short and 0 when flat
func (d Direction) Sign() float64 {
	switch d {
	case Long:
		return 1
	case Short:
		return -1
	default:
		return 0
	}
}

// MarshalText implements encoding.TextMarshaler so CSV and JSON output use the name.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Bar represents a fixed-interval OHLCV candle
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Validate checks the OHLC invariant: low <= min(open,close) <= max(open,close) <= high,
// positive finite prices and a non-negative volume.
func (b Bar) Validate() error {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return WrapError(ErrMalformedRecord, fmt.Errorf("non-finite field at %s", b.Time.Format(time.RFC3339)))
		}
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return WrapError(ErrMalformedRecord, fmt.Errorf("non-positive price at %s", b.Time.Format(time.RFC3339)))
	}
	if b.Volume < 0 {
		return WrapError(ErrMalformedRecord, fmt.Errorf("negative volume %v at %s", b.Volume, b.Time.Format(time.RFC3339)))
	}
	if b.Low > math.Min(b.Open, b.Close) || b.High < math.Max(b.Open, b.Close) {
		return WrapError(ErrMalformedRecord, fmt.Errorf("ohlc out of range at %s: o=%v h=%v l=%v c=%v",
			b.Time.Format(time.RFC3339), b.Open, b.High, b.Low, b.Close))
	}
	return nil
}

// Record is a raw, possibly irregular, price observation fed to the aggregator.
// A tick is a record with Open == High == Low == Close.
type Record = Bar

// Tick builds a record from a single traded or quoted price
func Tick(t time.Time, price, volume float64) Record {
	return Record{Time: t, Open: price, High: price, Low: price, Close: price, Volume: volume}
}

// Series is an ordered sequence of bars at a fixed nominal interval.
// Bars is never written to after the series is produced.
type Series struct {
	Symbol   string
	Interval time.Duration
	Bars     []Bar
}

// Len returns the number of bars
func (s Series) Len() int {
	return len(s.Bars)
}

// Closes extracts the close prices in order
func (s Series) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Start returns the time of the first bar, or the zero time for an empty series
func (s Series) Start() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[0].Time
}

// End returns the time of the last bar, or the zero time for an empty series
func (s Series) End() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[len(s.Bars)-1].Time
}

// WithBars returns a copy of the series metadata carrying the given bars
func (s Series) WithBars(bars []Bar) Series {
	return Series{Symbol: s.Symbol, Interval: s.Interval, Bars: bars}
}

// Signal is the position a strategy wants after seeing a bar
type Signal struct {
	Direction Direction
	Hold      bool // keep whatever position is currently held
	Reason    string
	Time      time.Time
}

// HoldSignal returns a signal that leaves the current position unchanged
func HoldSignal(t time.Time) Signal {
	return Signal{Hold: true, Time: t}
}
