package orchestrator

import (
	"fmt"
	"sort"
	"strings"
)

// AllProvidersFailedError reports that every provider call in the execution
// fan-out failed and zero responses were obtained.
type AllProvidersFailedError struct {
	Errors map[string]error
}

func (e *AllProvidersFailedError) Error() string {
	names := make([]string, 0, len(e.Errors))
	for name := range e.Errors {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Errors[name]))
	}
	return "all providers failed: " + strings.Join(parts, ", ")
}

// FallbackExhaustedError reports that the single-provider fallback itself
// failed. It is fatal: the pipeline never retries past it.
type FallbackExhaustedError struct {
	Original error
	Fallback error
}

func (e *FallbackExhaustedError) Error() string {
	return fmt.Sprintf("fallback exhausted: %s; fallback error: %s", e.Original, e.Fallback)
}

func (e *FallbackExhaustedError) Unwrap() error {
	return e.Fallback
}
