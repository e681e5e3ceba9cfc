package enums

import (
	"fmt"
	"strings"
)

// parseEnum matches value against set, ignoring case and surrounding space.
func parseEnum[T ~string](set []T, kind, value string) (T, error) {
	value = strings.TrimSpace(value)
	for _, candidate := range set {
		if strings.EqualFold(string(candidate), value) {
			return candidate, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}
