// Package errors defines the error taxonomy shared by the extraction and
// download pipeline.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies the errors that can occur during a run.
type Kind string

const (
	// KindTooManyTags means the tag query exceeds the site's maximum.
	KindTooManyTags Kind = "too_many_tags"
	// KindZeroPosts means the site returned nothing for the tag query.
	KindZeroPosts Kind = "zero_posts"
	// KindInvalidServerResponse means the API payload did not match any
	// known schema.
	KindInvalidServerResponse Kind = "invalid_server_response"
	// KindConnection covers transport-level failures.
	KindConnection Kind = "connection"
	// KindAuthentication covers failed logins and rejected credentials.
	KindAuthentication Kind = "authentication"
	// KindIO covers local filesystem failures.
	KindIO Kind = "io"
	// KindArchive covers failures while writing the output archive.
	KindArchive Kind = "archive"
	// KindNoPostsInQueue means extraction succeeded but filtering or resume
	// tracking removed every post. Distinct from KindZeroPosts: the query
	// itself had results.
	KindNoPostsInQueue Kind = "no_posts_in_queue"
)

// Error is a classified pipeline error. Two Errors match under errors.Is when
// their kinds are equal, so callers can test against the exported sentinels.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrZeroPosts       = &Error{Kind: KindZeroPosts, Message: "no posts found for tag selection"}
	ErrInvalidResponse = &Error{Kind: KindInvalidServerResponse, Message: "site returned an invalid response"}
	ErrNoPostsInQueue  = &Error{Kind: KindNoPostsInQueue, Message: "no posts left to download"}
)

// TooManyTags builds the validation error for a query exceeding the site's
// tag maximum.
func TooManyTags(current, max int) *Error {
	return &Error{
		Kind:    KindTooManyTags,
		Message: fmt.Sprintf("got %d tags while this imageboard supports a max of %d", current, max),
	}
}

// Connection wraps a transport failure.
func Connection(err error) *Error {
	return &Error{Kind: KindConnection, Err: err}
}

// Authentication wraps a failed login or rejected credentials.
func Authentication(msg string, err error) *Error {
	return &Error{Kind: KindAuthentication, Message: msg, Err: err}
}

// IO wraps a local filesystem failure.
func IO(msg string, err error) *Error {
	return &Error{Kind: KindIO, Message: msg, Err: err}
}

// Archive wraps a failure while writing the output archive.
func Archive(msg string, err error) *Error {
	return &Error{Kind: KindArchive, Message: msg, Err: err}
}

// KindOf extracts the kind of a pipeline error, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether an error kind is worth retrying at the
// transport layer. Validation and schema errors never are.
func IsRetryable(k Kind) bool {
	return k == KindConnection
}

// IsRetryableStatusCode reports whether an HTTP status code indicates a
// transient condition.
func IsRetryableStatusCode(statusCode int) bool {
	switch {
	case statusCode == 0: // network error
		return true
	case statusCode == 429:
		return true
	case statusCode >= 500:
		return true
	default:
		return false
	}
}
