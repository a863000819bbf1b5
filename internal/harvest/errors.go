package harvest

import (
	"errors"
	"fmt"
)

var (
	// ErrUnparsableDate marks an entry whose date text matches no known grammar.
	ErrUnparsableDate = errors.New("unparsable date")
	// ErrMissingElement marks an entry or detail page lacking a required element.
	ErrMissingElement = errors.New("missing required element")
)

// FetchErrorKind classifies a transport failure.
type FetchErrorKind int

// Fetch failure kinds.
const (
	KindUnexpected FetchErrorKind = iota
	KindHTTPStatus
	KindConnection
)

func (k FetchErrorKind) String() string {
	switch k {
	case KindHTTPStatus:
		return "http_status"
	case KindConnection:
		return "connection"
	default:
		return "unexpected"
	}
}

// FetchError is returned by fetchers for any failed GET.
type FetchError struct {
	Kind   FetchErrorKind
	URL    string
	Code   int
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("http error %d %s (%s)", e.Code, e.Reason, e.URL)
	case KindConnection:
		return fmt.Sprintf("connection error: %s (%s)", e.Reason, e.URL)
	default:
		return fmt.Sprintf("unexpected fetch error: %s (%s)", e.Reason, e.URL)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// AsFetchError extracts a *FetchError from err's chain.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
