package fetch

import (
	"errors"
	"fmt"

	"github.com/lysyi3m/tube-comb/app/mirror"
)

var (
	ErrNoProvidersConfigured = errors.New("no providers configured")
	ErrAllProvidersTimedOut  = errors.New("all providers timed out")
	ErrAllProvidersFailed    = errors.New("all providers failed")
)

// RaceError is returned when a race produces no winner. Err is one of the
// sentinels above or the caller's context error.
type RaceError struct {
	Category mirror.Category
	Path     string
	Attempts int
	Err      error
}

func (e *RaceError) Error() string {
	return fmt.Sprintf("race %s %s (%d attempts): %v", e.Category, e.Path, e.Attempts, e.Err)
}

func (e *RaceError) Unwrap() error {
	return e.Err
}
