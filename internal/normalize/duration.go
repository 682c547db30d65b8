package normalize

import (
	"fmt"
	"strconv"
)

// ParseDuration converts an ISO-8601 duration such as "PT1H2M3S" or "P1DT5M"
// to whole seconds. Years and months are rejected since their length is
// ambiguous; the platform never emits them.
func ParseDuration(s string) (int64, error) {
	if len(s) < 2 || s[0] != 'P' {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	var total int64
	inTime := false
	seen := false
	num := ""

	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9' || c == '.':
			num += string(c)
			continue
		case c == 'T':
			if inTime || num != "" {
				return 0, fmt.Errorf("invalid duration %q", s)
			}
			inTime = true
			continue
		}

		if num == "" {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		value, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		num = ""

		var unit float64
		switch {
		case !inTime && c == 'W':
			unit = 7 * 24 * 3600
		case !inTime && c == 'D':
			unit = 24 * 3600
		case inTime && c == 'H':
			unit = 3600
		case inTime && c == 'M':
			unit = 60
		case inTime && c == 'S':
			unit = 1
		default:
			return 0, fmt.Errorf("invalid duration %q: unsupported designator %q", s, c)
		}
		total += int64(value * unit)
		seen = true
	}

	if num != "" || !seen {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return total, nil
}
