// Package formatting provides human-readable formatting and parsing utilities
// for byte sizes and model-produced JSON.
package formatting

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var units = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

var bytesPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([A-Za-z]*)$`)

// FormatBytes converts a byte count to a human-readable string using base-1024 units.
// Negative precision values are clamped to zero.
func FormatBytes(n int64, precision int) string {
	precision = max(precision, 0)
	if n < 1024 && n > -1024 {
		return strconv.FormatInt(n, 10) + " B"
	}

	size := float64(n)
	i := 0
	for (size >= 1024 || size <= -1024) && i < len(units)-1 {
		size /= 1024
		i++
	}

	return strconv.FormatFloat(size, 'f', precision, 64) + " " + units[i]
}

// ParseBytes parses a size such as "10MB", "512 kb" or "1.5G" into a byte count.
// A bare number is bytes. Single-letter units (K, M, G...) and IEC suffixes
// (KiB, MiB...) are accepted as aliases of the base-1024 units.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	m := bytesPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size number: %w", err)
	}

	mult, err := unitMultiplier(m[2])
	if err != nil {
		return 0, err
	}

	return int64(value * float64(mult)), nil
}

func unitMultiplier(unit string) (int64, error) {
	u := strings.ToUpper(unit)
	u = strings.Replace(u, "IB", "B", 1)
	if len(u) == 1 && u != "B" {
		u += "B"
	}
	if u == "" {
		u = "B"
	}

	mult := int64(1)
	for _, candidate := range units {
		if candidate == u {
			return mult, nil
		}
		mult *= 1024
	}
	return 0, fmt.Errorf("unknown byte size unit: %q", unit)
}
