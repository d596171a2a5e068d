package timing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatTime renders seconds as minutes:seconds.tenths with the seconds
// zero-padded to four characters, e.g. 65.3 -> "1:05.3".
func FormatTime(seconds float64) string {
	if !isFinite(seconds) || seconds < 0 {
		seconds = 0
	}

	tenths := int64(math.Round(seconds * 10))
	minutes := tenths / 600
	rest := float64(tenths%600) / 10

	return fmt.Sprintf("%d:%04.1f", minutes, rest)
}

// ParseClock parses "m:ss", "m:ss.f" or a plain number of seconds.
func ParseClock(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty time value")
	}

	minutesPart, secondsPart, found := strings.Cut(s, ":")
	if !found {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || !isFinite(v) || v < 0 {
			return 0, fmt.Errorf("invalid time value %q", s)
		}
		return v, nil
	}

	minutes, err := strconv.Atoi(minutesPart)
	if err != nil || minutes < 0 {
		return 0, fmt.Errorf("invalid minutes in %q", s)
	}

	seconds, err := strconv.ParseFloat(secondsPart, 64)
	if err != nil || !isFinite(seconds) || seconds < 0 || seconds >= 60 {
		return 0, fmt.Errorf("invalid seconds in %q", s)
	}

	return float64(minutes)*60 + seconds, nil
}
