package gpd

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTabID means the tab UI and the tab store disagree about which tabs exist.
	ErrInvalidTabID = errors.New("invalid tab id")
	// ErrNotInDomain rejects an xbj or t value that is not among the resolved choices.
	ErrNotInDomain = errors.New("value not in resolved domain")
	// ErrQ2OutOfRange rejects a q2 value outside the resolved range.
	ErrQ2OutOfRange = errors.New("q2 outside resolved range")
	// ErrDataNotFound means the service has no table for the selection.
	ErrDataNotFound = errors.New("data not found")
)

// DomainUnavailableError reports a failed domain resolution. The previous
// domain stays in effect.
type DomainUnavailableError struct {
	Op  string
	Err error
}

func (e *DomainUnavailableError) Error() string {
	return fmt.Sprintf("domain unavailable (%s): %v", e.Op, e.Err)
}

func (e *DomainUnavailableError) Unwrap() error {
	return e.Err
}

// DatasetFetchError reports a failed dataset fetch. Nothing was stored.
type DatasetFetchError struct {
	Options Options
	Err     error
}

func (e *DatasetFetchError) Error() string {
	return fmt.Sprintf("dataset fetch failed for %s: %v", e.Options, e.Err)
}

func (e *DatasetFetchError) Unwrap() error {
	return e.Err
}

// IsDomainUnavailable reports whether err carries a DomainUnavailableError.
func IsDomainUnavailable(err error) bool {
	var target *DomainUnavailableError
	return errors.As(err, &target)
}

// IsDatasetFetchFailed reports whether err carries a DatasetFetchError.
func IsDatasetFetchFailed(err error) bool {
	var target *DatasetFetchError
	return errors.As(err, &target)
}
