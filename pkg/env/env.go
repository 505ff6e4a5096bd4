package env

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// ErrInvalidBool is returned when a string cannot be parsed as a boolean.
var ErrInvalidBool = errors.New("invalid boolean value")

// ParseBool interprets a string as a boolean. It trims whitespace and ignores
// case before matching.
//
// Accepted values:
//   - "true", "yes", "1"  -> true
//   - "false", "no", "0"  -> false
//   - "" (empty)          -> false, nil error
//   - any other non-empty -> false, ErrInvalidBool
func ParseBool(value string) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return false, nil
	}

	switch strings.ToLower(value) {
	case "true", "yes", "1":
		return true, nil
	case "false", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidBool, value)
	}
}

// LookupBool reads a boolean variable. ok is false when the variable is unset
// or empty; a value ParseBool rejects is an error naming the variable.
func LookupBool(name string) (value, ok bool, err error) {
	raw, set := os.LookupEnv(name)
	if !set || strings.TrimSpace(raw) == "" {
		return false, false, nil
	}
	value, err = ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("parsing %s: %w", name, err)
	}
	return value, true, nil
}

// FailsafeBool reads a boolean variable, returning defaultValue when it is
// unset, empty, or invalid.
func FailsafeBool(name string, defaultValue bool) bool {
	value, ok, err := LookupBool(name)
	if err != nil || !ok {
		return defaultValue
	}
	return value
}

// ToAssignments renders envMap as KEY=VALUE pairs in key order.
func ToAssignments(envMap map[string]string) []string {
	keys := lo.Keys(envMap)
	slices.Sort(keys)
	return lo.Map(keys, func(k string, _ int) string {
		return k + "=" + envMap[k]
	})
}
