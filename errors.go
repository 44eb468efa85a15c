package caslist

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleVersion rejects the handle of a page fetch whose response arrived
	// after a reload. The payload was discarded.
	ErrStaleVersion = errors.New("caslist: response superseded by reload")

	// ErrNilFetch is returned by constructors given a nil provider function.
	ErrNilFetch = errors.New("caslist: fetch function is required")

	// ErrIncomplete is returned by LoadAll when the provider's pages never add
	// up to a fully loaded list.
	ErrIncomplete = errors.New("caslist: list did not converge to fully loaded")
)

// FetchError wraps a provider failure with the list position it belongs to.
// Page is -1 for a non-paginated List.
type FetchError struct {
	List    string
	Page    int
	Version uint64
	Err     error
}

func (e *FetchError) Error() string {
	if e.Page < 0 {
		return fmt.Sprintf("caslist: fetch %q failed: %v", e.List, e.Err)
	}
	return fmt.Sprintf("caslist: fetch %q page %d (v%d) failed: %v", e.List, e.Page, e.Version, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ConfigError reports an invalid or missing constructor option.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string { return "caslist: " + e.Field + " " + e.Reason }
