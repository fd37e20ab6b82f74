// Package errs classifies errors crossing a component boundary into the
// small set of kinds the rest of the system branches on, instead of
// inspecting provider-specific error strings.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the taxonomy buckets from the error handling design.
type Kind int

const (
	// KindTransient covers network timeouts, 5xx, and rate-limited replies.
	// Handlers retry with backoff up to the operation deadline; a single
	// occurrence is never surfaced as a user-facing error.
	KindTransient Kind = iota
	// KindNotFound means a provider responded authoritatively that no data
	// exists. Cached negatively with a short TTL; surfaced as an empty
	// state, not an error.
	KindNotFound
	// KindMisconfigured covers a missing API key or an OAuth token past
	// refresh. The affected provider/source is disabled and a diagnostic
	// surfaces in /config; the process keeps running.
	KindMisconfigured
	// KindCorrupt covers a malformed cached file or settings document. The
	// file is quarantined with a .corrupt suffix and a default recreated.
	KindCorrupt
	// KindFatal covers a port bind failure or a held single-instance lock.
	// The process exits with the corresponding code.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindNotFound:
		return "not_found"
	case KindMisconfigured:
		return "misconfigured"
	case KindCorrupt:
		return "corrupt"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// kindError wraps an underlying error with a classification.
type kindError struct {
	kind Kind
	msg  string
	err  error
}

func (e *kindError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *kindError) Unwrap() error { return e.err }

// Is reports whether target is a sentinel produced by this package with
// the same kind, allowing `errors.Is(err, errs.NotFound("", nil))`-style checks
// as well as the more idiomatic Kind-based comparison via errors.As.
func (e *kindError) Is(target error) bool {
	var other *kindError
	if errors.As(target, &other) {
		return other.kind == e.kind
	}
	return false
}

func newKind(kind Kind, msg string, err error) error {
	return &kindError{kind: kind, msg: msg, err: err}
}

// Transient wraps err as a transient failure.
func Transient(msg string, err error) error { return newKind(KindTransient, msg, err) }

// NotFound wraps err (or nil) as an authoritative not-found result.
func NotFound(msg string, err error) error { return newKind(KindNotFound, msg, err) }

// Misconfigured wraps err as a configuration problem.
func Misconfigured(msg string, err error) error { return newKind(KindMisconfigured, msg, err) }

// Corrupt wraps err as a corrupt on-disk artifact.
func Corrupt(msg string, err error) error { return newKind(KindCorrupt, msg, err) }

// Fatal wraps err as an unrecoverable startup failure.
func Fatal(msg string, err error) error { return newKind(KindFatal, msg, err) }

// KindOf extracts the Kind from err, walking the wrap chain. The second
// return is false if neither err nor anything in its chain was produced by
// this package, in which case callers should treat it as transient.
func KindOf(err error) (Kind, bool) {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind, true
	}
	return KindTransient, false
}

// Is reports whether err's classification matches kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
