package search

import (
	"fmt"
	"strings"
)

// ParseISO8601Duration converts the detail API's duration format (PT15M33S,
// PT1H2M, P1DT2H) into seconds. Months and years are rejected: no video
// runs that long and their length in seconds is calendar-dependent.
func ParseISO8601Duration(s string) (int, error) {
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("parse duration %q: missing P prefix", s)
	}

	total := 0
	num := 0
	haveNum := false
	inTime := false
	sawUnit := false

	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9':
			num = num*10 + int(r-'0')
			haveNum = true
		case r == 'T':
			if haveNum {
				return 0, fmt.Errorf("parse duration %q: dangling number before T", s)
			}
			inTime = true
		default:
			if !haveNum {
				return 0, fmt.Errorf("parse duration %q: unit %q without a value", s, string(r))
			}
			mult := 0
			switch {
			case r == 'D' && !inTime:
				mult = 86400
			case r == 'H' && inTime:
				mult = 3600
			case r == 'M' && inTime:
				mult = 60
			case r == 'S' && inTime:
				mult = 1
			default:
				return 0, fmt.Errorf("parse duration %q: unsupported unit %q", s, string(r))
			}
			total += num * mult
			num = 0
			haveNum = false
			sawUnit = true
		}
	}

	if haveNum {
		return 0, fmt.Errorf("parse duration %q: trailing number without a unit", s)
	}
	if !sawUnit {
		return 0, fmt.Errorf("parse duration %q: no components", s)
	}
	return total, nil
}
