package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
)

// IntRange bounds an integer query parameter and supplies its default.
type IntRange struct {
	Default, Min, Max int
}

// QueryInt reads key from the query string. A missing value yields the
// default; anything non-numeric or outside the range is a VALIDATION_ERROR.
func QueryInt(r *http.Request, key string, bounds IntRange) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return bounds.Default, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < bounds.Min || value > bounds.Max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid query parameter").WithDetails(map[string]any{
			"field": key,
			"min":   bounds.Min,
			"max":   bounds.Max,
		})
	}
	return value, nil
}
