package aggregate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/fxmc/internal/core"
)

var unitDurations = map[string]time.Duration{
	"ms":  time.Millisecond,
	"l":   time.Millisecond,
	"s":   time.Second,
	"sec": time.Second,
	"t":   time.Minute,
	"m":   time.Minute,
	"min": time.Minute,
	"h":   time.Hour,
	"hr":  time.Hour,
	"d":   24 * time.Hour,
	"day": 24 * time.Hour,
	"w":   7 * 24 * time.Hour,
}

// ParseInterval parses a bar interval such as "15T", "15min", "1H", "D" or "15m".
// Go duration strings ("1h30m") are accepted as well. Month frequencies are rejected
// because they have no fixed length.
func ParseInterval(s string) (time.Duration, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, core.WrapError(core.ErrInvalidParameter, fmt.Errorf("empty interval"))
	}

	split := 0
	for split < len(raw) && raw[split] >= '0' && raw[split] <= '9' {
		split++
	}
	numPart, unitPart := raw[:split], raw[split:]

	if unitPart == "M" || unitPart == "MS" {
		return 0, core.WrapError(core.ErrInvalidParameter, fmt.Errorf("monthly interval %q is not fixed-length", s))
	}

	n := 1
	if numPart != "" {
		v, err := strconv.Atoi(numPart)
		if err != nil {
			return 0, core.WrapError(core.ErrInvalidParameter, fmt.Errorf("interval %q: %w", s, err))
		}
		n = v
	}

	if unit, ok := unitDurations[strings.ToLower(unitPart)]; ok {
		if n <= 0 {
			return 0, core.WrapError(core.ErrInvalidParameter, fmt.Errorf("interval %q must be positive", s))
		}
		if int64(n) > math.MaxInt64/int64(unit) {
			return 0, core.WrapError(core.ErrInvalidParameter, fmt.Errorf("interval %q overflows a duration", s))
		}
		return time.Duration(n) * unit, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, core.WrapError(core.ErrInvalidParameter, fmt.Errorf("unsupported interval %q", s))
	}
	if d <= 0 {
		return 0, core.WrapError(core.ErrInvalidParameter, fmt.Errorf("interval %q must be positive", s))
	}
	return d, nil
}
