// Package providers holds ready-made configurations for common sign-in
// providers. Each constructor returns a core provider that can be tweaked
// before it is passed to bantay.New.
package providers

import (
	"fmt"
	"strconv"
)

// stringField reads key from a decoded JSON profile. Numeric ids arrive as
// float64 and are formatted without an exponent.
func stringField(profile map[string]any, key string) string {
	switch v := profile[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// firstNonEmpty returns the first non-empty value.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
