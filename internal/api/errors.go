package api

import (
	"errors"
	"fmt"
)

// FetchError reports a listing request that stopped pagination early.
// Pages fetched before the failure are still returned to the caller.
type FetchError struct {
	Owner      string
	Name       string
	Page       int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s/%s page %d failed (status %d): %v", e.Owner, e.Name, e.Page, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s/%s page %d failed: %v", e.Owner, e.Name, e.Page, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError
func NewFetchError(owner, name string, page, statusCode int, err error) error {
	return &FetchError{
		Owner:      owner,
		Name:       name,
		Page:       page,
		StatusCode: statusCode,
		Err:        err,
	}
}

// IsFetchError checks if the error is a FetchError
func IsFetchError(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr)
}
