// Package dataset reads price files into bar series and writes run artifacts as CSV.
package dataset

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/newthinker/fxmc/internal/aggregate"
	"github.com/newthinker/fxmc/internal/core"
	"github.com/newthinker/fxmc/internal/storage/archive"
)

// Format names an input layout
type Format string

const (
	// Prepared files carry a Date column, e.g. "2017-01-02 00:00:00"
	Prepared Format = "prepared"
	// Raw files are Dukascopy exports keyed by "Gmt time" in day-first order
	Raw Format = "raw"
)

// DateLayout is used for every timestamp this package writes
const DateLayout = "2006-01-02 15:04:05"

// RawLayout is the Dukascopy "Gmt time" layout
const RawLayout = "02.01.2006 15:04:05.000"

var preparedLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04",
	time.RFC3339Nano,
	"2006-01-02",
}

var rawLayouts = []string{
	RawLayout,
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
}

type barRow struct {
	Date   string  `csv:"Date"`
	Open   float64 `csv:"Open"`
	High   float64 `csv:"High"`
	Low    float64 `csv:"Low"`
	Close  float64 `csv:"Close"`
	Volume float64 `csv:"Volume"`
}

type rawRow struct {
	GmtTime string  `csv:"Gmt time"`
	Open    float64 `csv:"Open"`
	High    float64 `csv:"High"`
	Low     float64 `csv:"Low"`
	Close   float64 `csv:"Close"`
	Volume  float64 `csv:"Volume"`
}

// Load reads path in the given format
func Load(ctx context.Context, store archive.Storage, path string, format Format, symbol string) (core.Series, error) {
	switch format {
	case Prepared, "":
		return LoadPrepared(ctx, store, path, symbol)
	case Raw:
		return LoadRaw(ctx, store, path, symbol)
	default:
		return core.Series{}, core.WrapError(core.ErrInvalidParameter, fmt.Errorf("unknown data format %q", format))
	}
}

// LoadPrepared reads a file with columns Date,Open,High,Low,Close and an
// optional Volume. Rows keep file order; the interval is inferred from the bar spacing.
func LoadPrepared(ctx context.Context, store archive.Storage, path, symbol string) (core.Series, error) {
	var rows []barRow
	if err := decode(ctx, store, path, &rows); err != nil {
		return core.Series{}, err
	}

	bars := make([]core.Bar, len(rows))
	for i, row := range rows {
		t, err := parseTime(row.Date, preparedLayouts)
		if err != nil {
			return core.Series{}, rowError(path, i, err)
		}
		bars[i] = core.Bar{Time: t, Open: row.Open, High: row.High, Low: row.Low, Close: row.Close, Volume: row.Volume}
	}
	return newSeries(path, symbol, bars)
}

// LoadRaw reads a Dukascopy export ("Gmt time",Open,High,Low,Close,Volume)
func LoadRaw(ctx context.Context, store archive.Storage, path, symbol string) (core.Series, error) {
	var rows []rawRow
	if err := decode(ctx, store, path, &rows); err != nil {
		return core.Series{}, err
	}

	bars := make([]core.Bar, len(rows))
	for i, row := range rows {
		t, err := parseTime(row.GmtTime, rawLayouts)
		if err != nil {
			return core.Series{}, rowError(path, i, err)
		}
		bars[i] = core.Bar{Time: t, Open: row.Open, High: row.High, Low: row.Low, Close: row.Close, Volume: row.Volume}
	}
	return newSeries(path, symbol, bars)
}

func newSeries(path, symbol string, bars []core.Bar) (core.Series, error) {
	if len(bars) == 0 {
		return core.Series{}, core.WrapError(core.ErrNoData, fmt.Errorf("%s has no rows", path))
	}
	for i, bar := range bars {
		if err := bar.Validate(); err != nil {
			return core.Series{}, rowError(path, i, err)
		}
	}
	return core.Series{
		Symbol:   symbol,
		Interval: aggregate.InferInterval(bars),
		Bars:     bars,
	}, nil
}

// rowError reports a 1-based line number counting the header
func rowError(path string, i int, err error) error {
	return fmt.Errorf("%s line %d: %w", path, i+2, err)
}

func decode(ctx context.Context, store archive.Storage, path string, out any) error {
	rc, err := store.Open(ctx, path)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := gocsv.Unmarshal(utf8Reader(rc), out); err != nil {
		return core.WrapError(core.ErrMalformedRecord, fmt.Errorf("decoding %s: %w", path, err))
	}
	return nil
}

// utf8Reader strips a UTF-8 BOM and transcodes UTF-16 input marked with a BOM.
// Exports saved from spreadsheet tools on Windows are commonly UTF-16LE.
func utf8Reader(r io.Reader) io.Reader {
	return transform.NewReader(bufio.NewReader(r), unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

func parseTime(s string, layouts []string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, core.WrapError(core.ErrMalformedRecord, fmt.Errorf("unparseable timestamp %q", s))
}
