package montecarlo

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/newthinker/fxmc/internal/core"
)

// Method selects how a synthetic series is drawn from the source bars
type Method string

const (
	// ShuffleReturns permutes close-to-close log returns and rebuilds a price path
	// from the first close. Only closes survive: every bar has O=H=L=C, so intrabar
	// range is not modelled.
	ShuffleReturns Method = "shuffle_returns"

	// BlockBootstrap samples contiguous blocks of bars with replacement, keeping
	// autocorrelation inside each block.
	BlockBootstrap Method = "block_bootstrap"
)

// ParseMethod accepts the config spellings of a resampling method
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ShuffleReturns), "shuffle", "permutation":
		return ShuffleReturns, nil
	case string(BlockBootstrap), "block", "bootstrap", "":
		return BlockBootstrap, nil
	default:
		return "", core.WrapError(core.ErrInvalidParameter, fmt.Errorf("unknown resample method %q", s))
	}
}

// Resampler produces one synthetic series per call. Implementations must draw
// randomness only from rng so a trial is reproducible from its seed.
type Resampler interface {
	Resample(src core.Series, rng *rand.Rand) (core.Series, error)
}

// NewResampler builds the resampler for a method
func NewResampler(m Method, blockSize int) (Resampler, error) {
	switch m {
	case ShuffleReturns:
		return returnShuffler{}, nil
	case BlockBootstrap:
		if blockSize <= 0 {
			return nil, core.WrapError(core.ErrInvalidParameter, fmt.Errorf("block_size must be positive, got %d", blockSize))
		}
		return blockBootstrapper{blockSize: blockSize}, nil
	default:
		return nil, core.WrapError(core.ErrInvalidParameter, fmt.Errorf("unknown resample method %q", m))
	}
}

type returnShuffler struct{}

func (returnShuffler) Resample(src core.Series, rng *rand.Rand) (core.Series, error) {
	bars := src.Bars
	if len(bars) < 2 {
		return core.Series{}, core.WrapError(core.ErrInsufficientData, fmt.Errorf("need at least 2 bars, got %d", len(bars)))
	}

	returns := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		returns[i-1] = math.Log(bars[i].Close / bars[i-1].Close)
	}
	rng.Shuffle(len(returns), func(i, j int) {
		returns[i], returns[j] = returns[j], returns[i]
	})

	out := make([]core.Bar, len(bars))
	price := bars[0].Close
	out[0] = core.Tick(bars[0].Time, price, bars[0].Volume)
	logPrice := math.Log(price)
	for i, r := range returns {
		logPrice += r
		p := math.Exp(logPrice)
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			return core.Series{}, core.WrapError(core.ErrMalformedRecord, fmt.Errorf("synthetic price %v at bar %d", p, i+1))
		}
		out[i+1] = core.Tick(bars[i+1].Time, p, bars[i+1].Volume)
	}

	return src.WithBars(out), nil
}

type blockBootstrapper struct {
	blockSize int
}

// Resample stitches randomly chosen blocks end to end. Each block is rescaled so
// its first bar opens where the previous block closed, which keeps the path
// continuous; bar times are taken from the source in order so they stay increasing.
func (b blockBootstrapper) Resample(src core.Series, rng *rand.Rand) (core.Series, error) {
	bars := src.Bars
	n := len(bars)
	if n == 0 {
		return core.Series{}, core.WrapError(core.ErrInsufficientData, fmt.Errorf("empty series"))
	}

	size := b.blockSize
	if size > n {
		size = n
	}
	starts := n - size + 1

	out := make([]core.Bar, 0, n)
	prevClose := bars[0].Open
	for len(out) < n {
		first := rng.IntN(starts)
		take := min(size, n-len(out))
		block := bars[first : first+take]

		scale := prevClose / block[0].Open
		for _, bar := range block {
			out = append(out, core.Bar{
				Time:   bars[len(out)].Time,
				Open:   bar.Open * scale,
				High:   bar.High * scale,
				Low:    bar.Low * scale,
				Close:  bar.Close * scale,
				Volume: bar.Volume,
			})
		}
		prevClose = out[len(out)-1].Close
	}

	for i, bar := range out {
		if err := bar.Validate(); err != nil {
			return core.Series{}, fmt.Errorf("synthetic bar %d: %w", i, err)
		}
	}
	return src.WithBars(out), nil
}
