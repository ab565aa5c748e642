// Package formatting holds parsing helpers shared by the pipeline: byte sizes
// for configuration and reports, and tolerant JSON recovery for model output.
package formatting

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

var units = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

// multipliers maps every accepted unit spelling, upper-cased, to its size.
// All units are binary: "MB", "MiB" and "M" each mean 1024*1024.
var multipliers = func() map[string]int64 {
	m := map[string]int64{"": 1, "B": 1}
	size := int64(1)
	for _, u := range units[1:] {
		size *= 1024
		p := u[:1]
		m[u] = size
		m[p] = size
		m[p+"IB"] = size
	}
	return m
}()

// FormatBytes renders n with binary units, e.g. "1.5 MB". Bytes are always
// shown without decimals.
func FormatBytes(n int64, precision int) string {
	if n < 1024 {
		return strconv.FormatInt(n, 10) + " B"
	}

	size := float64(n)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	return strconv.FormatFloat(size, 'f', max(precision, 0), 64) + " " + units[i]
}

// ParseBytes parses sizes such as "25MB", "512 kb" or "1.5GiB". A bare
// number is bytes.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	split := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	num, unit := s, ""
	if split >= 0 {
		num, unit = s[:split], strings.TrimSpace(s[split:])
	}
	if num == "" {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size number %q: %w", num, err)
	}

	mult, ok := multipliers[strings.ToUpper(unit)]
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit: %q", unit)
	}

	return int64(value * float64(mult)), nil
}
