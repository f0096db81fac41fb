package aggregate

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/newthinker/fxmc/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func at(min, sec int) time.Time {
	return base.Add(time.Duration(min)*time.Minute + time.Duration(sec)*time.Second)
}

func TestAggregate_BucketsTicks(t *testing.T) {
	records := []core.Record{
		core.Tick(at(0, 5), 1.1000, 1),
		core.Tick(at(3, 0), 1.1010, 2),
		core.Tick(at(7, 30), 1.0990, 1),
		core.Tick(at(14, 59), 1.1005, 3),
		core.Tick(at(15, 0), 1.1020, 1),
		core.Tick(at(20, 0), 1.1015, 1),
	}

	series, err := Aggregate(records, 15*time.Minute)
	require.NoError(t, err)
	require.Len(t, series.Bars, 2)

	first := series.Bars[0]
	assert.Equal(t, base, first.Time)
	assert.Equal(t, 1.1000, first.Open)
	assert.Equal(t, 1.1010, first.High)
	assert.Equal(t, 1.0990, first.Low)
	assert.Equal(t, 1.1005, first.Close)
	assert.Equal(t, 7.0, first.Volume)

	second := series.Bars[1]
	assert.Equal(t, at(15, 0), second.Time)
	assert.Equal(t, 1.1020, second.Open)
	assert.Equal(t, 1.1015, second.Close)
	assert.Equal(t, 15*time.Minute, series.Interval)
}

func TestAggregate_BarRecords(t *testing.T) {
	records := []core.Record{
		{Time: at(0, 0), Open: 1.10, High: 1.12, Low: 1.09, Close: 1.11, Volume: 5},
		{Time: at(5, 0), Open: 1.11, High: 1.15, Low: 1.10, Close: 1.14, Volume: 5},
		{Time: at(10, 0), Open: 1.14, High: 1.14, Low: 1.05, Close: 1.06, Volume: 5},
	}

	series, err := Aggregate(records, 15*time.Minute)
	require.NoError(t, err)
	require.Len(t, series.Bars, 1)

	bar := series.Bars[0]
	assert.Equal(t, 1.10, bar.Open)
	assert.Equal(t, 1.15, bar.High)
	assert.Equal(t, 1.05, bar.Low)
	assert.Equal(t, 1.06, bar.Close)
	assert.Equal(t, 15.0, bar.Volume)
}

func TestAggregate_NoSyntheticBarsForGaps(t *testing.T) {
	records := []core.Record{
		core.Tick(at(0, 0), 1.1, 0),
		core.Tick(at(120, 0), 1.2, 0), // two hours later
	}

	series, err := Aggregate(records, 15*time.Minute)
	require.NoError(t, err)
	require.Len(t, series.Bars, 2)
	assert.Equal(t, 2*time.Hour, series.Bars[1].Time.Sub(series.Bars[0].Time))
}

func TestAggregate_SortsUnorderedInput(t *testing.T) {
	records := []core.Record{
		core.Tick(at(16, 0), 1.3, 0),
		core.Tick(at(1, 0), 1.1, 0),
		core.Tick(at(2, 0), 1.2, 0),
	}
	original := append([]core.Record(nil), records...)

	series, err := Aggregate(records, 15*time.Minute)
	require.NoError(t, err)
	require.Len(t, series.Bars, 2)
	assert.Equal(t, 1.1, series.Bars[0].Open)
	assert.Equal(t, 1.2, series.Bars[0].Close)
	assert.Equal(t, 1.3, series.Bars[1].Open)

	// Caller's slice is left untouched
	assert.Equal(t, original, records)
}

func TestAggregate_Idempotent(t *testing.T) {
	var records []core.Record
	price := 1.1
	for i := 0; i < 500; i++ {
		price += 0.0001 * math.Sin(float64(i))
		records = append(records, core.Tick(base.Add(time.Duration(i*37)*time.Second), price, float64(i%3)))
	}

	once, err := Aggregate(records, 15*time.Minute)
	require.NoError(t, err)

	twice, err := Aggregate(once.Bars, 15*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestAggregate_OHLCInvariant(t *testing.T) {
	var records []core.Record
	for i := 0; i < 300; i++ {
		p := 1.2 + 0.01*math.Cos(float64(i)/7)
		records = append(records, core.Tick(base.Add(time.Duration(i)*20*time.Second), p, 1))
	}

	series, err := Aggregate(records, 5*time.Minute)
	require.NoError(t, err)
	for i, b := range series.Bars {
		assert.NoError(t, b.Validate(), "bar %d", i)
		assert.LessOrEqual(t, b.Low, math.Min(b.Open, b.Close))
		assert.GreaterOrEqual(t, b.High, math.Max(b.Open, b.Close))
	}
	assert.NoError(t, ValidateSeries(series))
}

func TestAggregate_MalformedRecord(t *testing.T) {
	records := []core.Record{
		core.Tick(at(0, 0), 1.1, 0),
		{Time: at(1, 0), Open: 1.1, High: 1.0, Low: 1.2, Close: 1.1},
	}

	_, err := Aggregate(records, time.Minute)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMalformedRecord))
}

func TestAggregate_NaNRecord(t *testing.T) {
	_, err := Aggregate([]core.Record{core.Tick(at(0, 0), math.NaN(), 0)}, time.Minute)
	assert.ErrorIs(t, err, core.ErrMalformedRecord)
}

func TestAggregate_InvalidInterval(t *testing.T) {
	_, err := Aggregate([]core.Record{core.Tick(at(0, 0), 1.1, 0)}, 0)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestAggregate_Empty(t *testing.T) {
	_, err := Aggregate(nil, time.Minute)
	assert.ErrorIs(t, err, core.ErrNoData)
}

func TestAggregator_NoLookAhead(t *testing.T) {
	agg, err := New(15 * time.Minute)
	require.NoError(t, err)

	_, emitted, err := agg.Push(core.Tick(at(0, 0), 1.1, 0))
	require.NoError(t, err)
	assert.False(t, emitted)

	_, emitted, err = agg.Push(core.Tick(at(14, 0), 1.2, 0))
	require.NoError(t, err)
	assert.False(t, emitted, "bucket must not close before a later bucket starts")
	assert.Equal(t, 15*time.Minute, agg.Interval())

	bar, emitted, err := agg.Push(core.Tick(at(15, 0), 1.3, 0))
	require.NoError(t, err)
	require.True(t, emitted)
	assert.Equal(t, 1.2, bar.Close)

	last, ok := agg.Flush()
	require.True(t, ok)
	assert.Equal(t, 1.3, last.Open)

	_, ok = agg.Flush()
	assert.False(t, ok)
}

func TestAggregator_RejectsOutOfOrder(t *testing.T) {
	agg, err := New(15 * time.Minute)
	require.NoError(t, err)

	_, _, err = agg.Push(core.Tick(at(20, 0), 1.1, 0))
	require.NoError(t, err)

	_, _, err = agg.Push(core.Tick(at(5, 0), 1.1, 0))
	assert.ErrorIs(t, err, core.ErrDataOrder)
}

func TestFloor(t *testing.T) {
	ts := time.Date(2024, 3, 4, 9, 47, 13, 0, time.FixedZone("CET", 3600))
	got := Floor(ts, 15*time.Minute)
	assert.Equal(t, time.Date(2024, 3, 4, 8, 45, 0, 0, time.UTC), got)

	day := Floor(ts, 24*time.Hour)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), day)
}

func TestFloor_WeeksStartOnMonday(t *testing.T) {
	week := 7 * 24 * time.Hour
	monday := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, monday, Floor(time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC), week))
	assert.Equal(t, monday, Floor(time.Date(2024, 1, 14, 23, 59, 0, 0, time.UTC), week), "sunday belongs to the week before")
	assert.Equal(t, monday.AddDate(0, 0, 7), Floor(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), week))
	assert.Equal(t, time.Monday, Floor(time.Date(1969, 12, 31, 12, 0, 0, 0, time.UTC), week).Weekday())

	twoWeeks := Floor(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), 2*week)
	assert.Equal(t, time.Monday, twoWeeks.Weekday())
}

func TestAggregate_WeeklyBars(t *testing.T) {
	records := []core.Record{
		core.Tick(time.Date(2024, 1, 5, 21, 0, 0, 0, time.UTC), 1.10, 0), // friday
		core.Tick(time.Date(2024, 1, 8, 1, 0, 0, 0, time.UTC), 1.11, 0),  // monday
		core.Tick(time.Date(2024, 1, 12, 20, 0, 0, 0, time.UTC), 1.12, 0),
	}
	s, err := Aggregate(records, 7*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, s.Bars, 2)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), s.Bars[0].Time)
	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), s.Bars[1].Time)
	assert.Equal(t, 1.12, s.Bars[1].Close)
	assert.Equal(t, 7*24*time.Hour, s.Interval)
}
