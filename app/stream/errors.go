package stream

import (
	"errors"
	"fmt"
)

var (
	ErrFormatNotFound     = errors.New("format not found")
	ErrNoFormatsAvailable = errors.New("no formats available")
	ErrNotConfigured      = errors.New("stream provider not configured")
)

// UpstreamHTTPError carries the status code of a non-200 provider response
type UpstreamHTTPError struct {
	URL        string
	StatusCode int
}

func (e *UpstreamHTTPError) Error() string {
	if e == nil {
		return "upstream HTTP error"
	}
	return fmt.Sprintf("upstream HTTP %d from %s", e.StatusCode, e.URL)
}
