// Sentinel errors shared across the engine's layers. Callers should use
// errors.Is to match these values.
package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// Store-level errors.
	ErrNotFound = errors.New("not found")
	ErrNotOwned = errors.New("not owned by user")

	// Precondition errors; rejected before any side effect.
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidInterval    = errors.New("start must precede end")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotConnected       = errors.New("account not connected")

	// Every provider call failed; no internal state was created or removed.
	ErrAllProvidersFailed = errors.New("all providers failed")
)

// PartialError reports a fan-out where some providers failed while others
// succeeded. Local state reflects the successes; the caller decides what to
// do about the rest.
type PartialError struct {
	Op     string
	Failed map[ProviderKind]error
}

func (e *PartialError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for kind := range e.Failed {
		names = append(names, string(kind))
	}
	sort.Strings(names)
	return fmt.Sprintf("%s partially failed for providers: %s", e.Op, strings.Join(names, ", "))
}

// Providers returns the failing provider kinds in stable order.
func (e *PartialError) Providers() []ProviderKind {
	names := make([]string, 0, len(e.Failed))
	for kind := range e.Failed {
		names = append(names, string(kind))
	}
	sort.Strings(names)
	kinds := make([]ProviderKind, len(names))
	for i, n := range names {
		kinds[i] = ProviderKind(n)
	}
	return kinds
}
