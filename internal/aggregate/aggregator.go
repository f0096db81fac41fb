package aggregate

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/newthinker/fxmc/internal/core"
)

// Aggregator folds time-ordered records into fixed-interval OHLCV bars.
// A bar is only emitted once a record from a strictly later bucket arrives
// or Flush is called, so no bar ever depends on data after its bucket.
type Aggregator struct {
	interval time.Duration
	current  core.Bar
	bucket   time.Time
	last     time.Time
	open     bool
}

// New creates an aggregator for the given bucket width
func New(interval time.Duration) (*Aggregator, error) {
	if interval <= 0 {
		return nil, core.WrapError(core.ErrInvalidParameter, fmt.Errorf("interval must be positive, got %s", interval))
	}
	return &Aggregator{interval: interval}, nil
}

// Interval returns the bucket width
func (a *Aggregator) Interval() time.Duration {
	return a.interval
}

// Push adds a record. When the record opens a new bucket the previous bucket's
// bar is returned with emitted set. Records must arrive in time order.
func (a *Aggregator) Push(r core.Record) (bar core.Bar, emitted bool, err error) {
	if err := r.Validate(); err != nil {
		return core.Bar{}, false, err
	}

	b := Floor(r.Time, a.interval)
	if !a.open {
		a.start(b, r)
		return core.Bar{}, false, nil
	}

	if r.Time.Before(a.last) {
		return core.Bar{}, false, core.WrapError(core.ErrDataOrder,
			fmt.Errorf("record at %s after %s", r.Time.Format(time.RFC3339Nano), a.last.Format(time.RFC3339Nano)))
	}

	if b.Equal(a.bucket) {
		a.merge(r)
		return core.Bar{}, false, nil
	}

	finished := a.current
	a.start(b, r)
	return finished, true, nil
}

// Flush returns the bar of the bucket in progress, if any, and resets the aggregator
func (a *Aggregator) Flush() (core.Bar, bool) {
	if !a.open {
		return core.Bar{}, false
	}
	bar := a.current
	a.open = false
	return bar, true
}

func (a *Aggregator) start(bucket time.Time, r core.Record) {
	a.bucket = bucket
	a.last = r.Time
	a.open = true
	a.current = core.Bar{
		Time:   bucket,
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Close:  r.Close,
		Volume: r.Volume,
	}
}

func (a *Aggregator) merge(r core.Record) {
	a.current.High = math.Max(a.current.High, r.High)
	a.current.Low = math.Min(a.current.Low, r.Low)
	a.current.Close = r.Close
	a.current.Volume += r.Volume
	a.last = r.Time
}

// Aggregate converts raw records into a bar series at the given interval.
//
// Unsorted input is sorted (stable, by time) instead of rejected; records sharing
// a timestamp keep their input order. Buckets without records produce no bar.
func Aggregate(records []core.Record, interval time.Duration) (core.Series, error) {
	agg, err := New(interval)
	if err != nil {
		return core.Series{}, err
	}
	if len(records) == 0 {
		return core.Series{}, core.ErrNoData
	}

	ordered := records
	if !sort.SliceIsSorted(records, func(i, j int) bool { return records[i].Time.Before(records[j].Time) }) {
		ordered = make([]core.Record, len(records))
		copy(ordered, records)
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Time.Before(ordered[j].Time) })
	}

	bars := make([]core.Bar, 0, estimateBars(ordered, interval))
	for _, r := range ordered {
		bar, emitted, err := agg.Push(r)
		if err != nil {
			return core.Series{}, err
		}
		if emitted {
			bars = append(bars, bar)
		}
	}
	if bar, ok := agg.Flush(); ok {
		bars = append(bars, bar)
	}

	return core.Series{Interval: agg.Interval(), Bars: bars}, nil
}

// week is the width of a weekly bucket
const week = 7 * 24 * time.Hour

// mondayOffset shifts the Unix epoch (a Thursday) to Monday 1970-01-05
const mondayOffset = int64(4 * 24 * time.Hour)

// Floor returns the start of the bucket containing t, in UTC. Buckets are
// epoch-aligned, except whole-week intervals which start on Monday 00:00.
func Floor(t time.Time, interval time.Duration) time.Time {
	ns := t.UnixNano()
	d := int64(interval)
	var anchor int64
	if interval%week == 0 {
		anchor = mondayOffset
	}
	ns -= anchor
	rem := ns % d
	if rem < 0 {
		rem += d
	}
	return time.Unix(0, ns-rem+anchor).UTC()
}

func estimateBars(records []core.Record, interval time.Duration) int {
	span := records[len(records)-1].Time.Sub(records[0].Time)
	n := int(span/interval) + 1
	if n > len(records) {
		return len(records)
	}
	return n
}
