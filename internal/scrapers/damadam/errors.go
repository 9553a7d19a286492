package damadam

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a profile could not be fetched, the name is
// written into the target's remarks as is.
type FailureKind string

const (
	NotFound     FailureKind = "NotFound"
	AuthExpired  FailureKind = "AuthExpired"
	NetworkError FailureKind = "NetworkError"
	ParseError   FailureKind = "ParseError"
)

var ErrLoginFailed = errors.New("damadam: login failed")

type FetchError struct {
	Kind     FailureKind
	Nickname string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: fetch %s: %v", e.Kind, e.Nickname, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func newFetchError(kind FailureKind, nickname string, err error) *FetchError {
	return &FetchError{Kind: kind, Nickname: nickname, Err: err}
}

// KindOf returns the failure kind carried by err, errors that were not
// classified by the fetcher are treated as network errors.
func KindOf(err error) FailureKind {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind
	}
	if errors.Is(err, ErrLoginFailed) {
		return AuthExpired
	}
	return NetworkError
}
