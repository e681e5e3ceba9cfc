// Package env reads the few process flags needed before config loads.
package env

import (
	"os"
	"strconv"
)

// Get returns the value of key, or fallback when it is unset or empty.
func Get(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

// Bool parses key as a boolean. A set but unparsable value counts as true,
// matching the NO_COLOR convention where any value opts in.
func Bool(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return true
	}
	return b
}
