package resample

import (
	"math"
	"strconv"
	"strings"

	"github.com/tickfold/tickfold/pkg/errors"
)

// Fixed-duration base units in nanoseconds. Only these tile into buckets
// whose boundaries are a pure function of the anchor.
var fixedUnits = map[string]int64{
	"ns":  1,
	"us":  1_000,
	"ms":  1_000_000,
	"s":   1_000_000_000,
	"min": 60_000_000_000,
	"h":   3_600_000_000_000,
	"d":   86_400_000_000_000,
}

// Calendar-based aliases. These denote periods of varying physical length
// and are rejected outright rather than approximated. Matching is
// case-sensitive where an alias collides with a fixed unit: "MS" is month
// start, "ms" is milliseconds.
var calendarExact = map[string]struct{}{
	"B": {}, "C": {}, "W": {}, "M": {}, "Q": {}, "Y": {},
	"bh": {}, "cbh": {},
	"MS": {}, "ME": {}, "SMS": {}, "SME": {}, "BMS": {}, "BME": {},
	"CBMS": {}, "CBME": {}, "QS": {}, "QE": {}, "BQS": {}, "BQE": {},
	"YS": {}, "YE": {}, "BYS": {}, "BYE": {},
}

var calendarLoose = map[string]struct{}{
	"b": {}, "c": {}, "w": {}, "m": {}, "q": {}, "y": {},
	"me": {}, "sms": {}, "sme": {}, "bms": {}, "bme": {},
	"cbms": {}, "cbme": {}, "qs": {}, "qe": {}, "bqs": {}, "bqe": {},
	"ys": {}, "ye": {}, "bys": {}, "bye": {},
	"mon": {}, "month": {}, "week": {}, "quarter": {}, "year": {},
}

// ParseRule parses a fixed-duration rule string into nanoseconds. Compound
// strings concatenate (count, unit) tokens: "1h30min", "2min37s", "15ns",
// "3D". A bare unit means one of it. Calendar-based aliases (W, M, Q, Y,
// B, bh and friends) are a configuration error, as are zero and negative
// durations.
func ParseRule(rule string) (int64, error) {
	ns, err := parseDuration(rule)
	if err != nil {
		return 0, err
	}
	if ns <= 0 {
		return 0, errors.Newf(errors.ErrorTypeConfiguration, "rule %q must denote a positive duration", rule).
			WithDetail("rule", rule)
	}
	return ns, nil
}

// ParseOffset parses a signed fixed-duration offset string into
// nanoseconds. An offset may exceed the rule in magnitude.
func ParseOffset(offset string) (int64, error) {
	s := offset
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	ns, err := parseDuration(s)
	if err != nil {
		return 0, err
	}
	if neg {
		ns = -ns
	}
	return ns, nil
}

// parseDuration scans a compound fixed-duration string.
func parseDuration(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, errors.New(errors.ErrorTypeConfiguration, "empty duration string")
	}

	var total int64
	rest := s
	for len(rest) > 0 {
		digits, unit, tail, ok := scanToken(rest)
		if !ok {
			return 0, errors.Newf(errors.ErrorTypeConfiguration, "cannot parse duration %q", s).
				WithDetail("rule", s)
		}
		count := int64(1)
		if digits != "" {
			var err error
			count, err = strconv.ParseInt(digits, 10, 64)
			if err != nil {
				return 0, rangeError(s)
			}
		}
		if _, calendar := calendarExact[unit]; calendar {
			return 0, calendarError(s, unit)
		}
		lower := strings.ToLower(unit)
		base, fixed := fixedUnits[lower]
		if !fixed {
			if _, calendar := calendarLoose[lower]; calendar {
				return 0, calendarError(s, unit)
			}
			return 0, errors.Newf(errors.ErrorTypeConfiguration, "unknown duration unit %q in %q", unit, s).
				WithDetail("rule", s).
				WithDetail("unit", unit)
		}
		if count > math.MaxInt64/base {
			return 0, rangeError(s)
		}
		add := count * base
		if total > math.MaxInt64-add {
			return 0, rangeError(s)
		}
		total += add
		rest = tail
	}
	return total, nil
}

// scanToken reads one optional digit run followed by a unit name from the
// head of s. Empty digits mean a count of one.
func scanToken(s string) (digits, unit, rest string, ok bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	j := i
	for j < len(s) && isAlpha(s[j]) {
		j++
	}
	if j == i {
		return "", "", "", false
	}
	return s[:i], s[i:j], s[j:], true
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func rangeError(rule string) error {
	return errors.Newf(errors.ErrorTypeConfiguration,
		"duration %q is out of range", rule).
		WithDetail("rule", rule)
}

func calendarError(rule, unit string) error {
	return errors.Newf(errors.ErrorTypeConfiguration,
		"calendar-based rule %q is not supported: unit %q has no fixed duration", rule, unit).
		WithDetail("rule", rule).
		WithDetail("unit", unit)
}
