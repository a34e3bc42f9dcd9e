// Package options filters and checks request parameter sets before they are
// encoded into a Vault request body.
package options

import (
	"fmt"
	"strings"
)

// ValidationError is returned by Require when required parameters are absent.
// It is raised before any request is built, so nothing reaches the network.
type ValidationError struct {
	// Missing lists the absent keys in the order they were required.
	Missing []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "missing required arguments: " + strings.Join(e.Missing, ",")
}

// StatusCode reports the client-error class of a validation failure.
func (e *ValidationError) StatusCode() int {
	return 400
}

// Resolve returns a copy of params holding only the keys listed in allowed.
// Unknown keys are dropped silently.
func Resolve(params map[string]any, allowed ...string) map[string]any {
	out := make(map[string]any, len(allowed))
	for _, key := range allowed {
		if value, ok := params[key]; ok {
			out[key] = value
		}
	}
	return out
}

// Require returns params unchanged when every required key is present.
func Require(params map[string]any, required ...string) (map[string]any, error) {
	var missing []string
	for _, key := range required {
		if _, ok := params[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}
	return params, nil
}

// ResolveRequired applies Resolve and then Require, the usual pairing for
// endpoints that have both an allow-list and mandatory fields.
func ResolveRequired(params map[string]any, allowed []string, required ...string) (map[string]any, error) {
	resolved := Resolve(params, allowed...)
	if _, err := Require(resolved, required...); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	return resolved, nil
}
