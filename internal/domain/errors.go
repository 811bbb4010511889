package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrPageLimitExceeded is returned when pagination is still reporting more
// pages after the configured page cap.
var ErrPageLimitExceeded = errors.New("page limit exceeded")

// ParseError reports a response body that is not well-formed for its format.
type ParseError struct {
	Format Format
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s response: %v", e.Format.Shape(), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnsupportedFormatError reports an unknown format identifier.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q", e.Format)
}

// HTTPError reports a non-2xx response from the strike API.
type HTTPError struct {
	Status     int
	StatusText string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("strike API error: status %d %s: %s", e.Status, e.StatusText, e.Body)
}

// NetworkError reports a transport-level failure.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("strike API request: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// NotYetFinalisedError rejects a window whose end has not crossed the
// finalisation horizon.
type NotYetFinalisedError struct {
	End     time.Time
	Horizon time.Time
}

func (e *NotYetFinalisedError) Error() string {
	return fmt.Sprintf("query ends at %s, which is not before the finalised horizon %s",
		FormatInstant(e.End), FormatInstant(e.Horizon))
}

// TooManyParallelQueriesError rejects a parallelism above MaxParallelQueries.
type TooManyParallelQueriesError struct {
	Requested int
	Max       int
}

func (e *TooManyParallelQueriesError) Error() string {
	return fmt.Sprintf("%d parallel queries requested, at most %d allowed", e.Requested, e.Max)
}

// MergeShapeMismatchError reports an attempt to merge collections of
// incompatible shapes.
type MergeShapeMismatchError struct {
	Base  Format
	Other Format
}

func (e *MergeShapeMismatchError) Error() string {
	return fmt.Sprintf("cannot merge %s collection into %s collection", e.Other.Shape(), e.Base.Shape())
}

// IsPermanent reports whether err will not change on retry.
func IsPermanent(err error) bool {
	var pe *ParseError
	var ue *UnsupportedFormatError
	var me *MergeShapeMismatchError
	return errors.As(err, &pe) || errors.As(err, &ue) || errors.As(err, &me)
}
