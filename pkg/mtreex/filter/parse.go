package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Calendar lengths used by ParseDuration. Months and years are nominal.
const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
	Year  = 365 * Day
)

// Errors returned by ParseDuration and ParseSize.
var (
	ErrInvalidDuration = errors.New("invalid duration format")
	ErrInvalidSize     = errors.New("invalid size format")
	ErrNegativeValue   = errors.New("value cannot be negative")
)

// calendarUnits are the suffixes ParseDuration accepts beyond Go's own.
var calendarUnits = []struct {
	suffix string
	length time.Duration
}{
	{"mo", Month},
	{"d", Day},
	{"w", Week},
	{"y", Year},
}

// ParseDuration parses an age such as "30d", "2w", "3mo", "1.5y" or any
// time.ParseDuration string like "90m".
func ParseDuration(s string) (time.Duration, error) {
	s, err := checkQuantity(s, ErrInvalidDuration)
	if err != nil {
		return 0, err
	}

	lower := strings.ToLower(s)
	for _, u := range calendarUnits {
		num, ok := strings.CutSuffix(lower, u.suffix)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil || strings.ContainsAny(num, "eEinfINF") {
			break
		}
		return time.Duration(v * float64(u.length)), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	return d, nil
}

// ParseSize parses a size such as "512", "10K", "1.5MiB" or "2GB" into
// bytes. SI suffixes (K, MB) are powers of 1000 and IEC suffixes (Ki, MiB)
// powers of 1024.
func ParseSize(s string) (int64, error) {
	s, err := checkQuantity(s, ErrInvalidSize)
	if err != nil {
		return 0, err
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	return int64(n), nil
}

// checkQuantity trims s and rejects empty and negative input.
func checkQuantity(s string, invalid error) (string, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return "", fmt.Errorf("%w: empty string", invalid)
	case s[0] == '-':
		return "", ErrNegativeValue
	}
	return s, nil
}
