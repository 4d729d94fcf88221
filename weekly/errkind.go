package weekly

import "github.com/pkg/errors"

// Kind classifies an error for the facade and the batch job log. It is
// carried as structured context on a wrapped error so callers can recover
// it without inspecting message text.
type Kind string

const (
	KindBadRequest            Kind = "bad_request"
	KindNotFound              Kind = "not_found"
	KindStoreUnavailable      Kind = "store_unavailable"
	KindCapabilityUnavailable Kind = "capability_unavailable"
	KindCapabilityQuota       Kind = "capability_quota"
	KindParseError            Kind = "parse_error"
	KindPersistConflict       Kind = "persist_conflict"
	KindTimeout               Kind = "timeout"
	KindCancelled             Kind = "cancelled"
	KindInternal              Kind = "internal"
	// KindConsumerSlow is the streaming-only back-pressure kind: the client
	// stopped draining events and the stream was cut.
	KindConsumerSlow Kind = "consumer_slow"
)

// kindError carries a Kind alongside the wrapped cause. errors.Cause unwraps
// through it via Cause, and errors.Unwrap via Unwrap, matching pkg/errors'
// wrap chain.
type kindError struct {
	kind  Kind
	cause error
}

func (e *kindError) Error() string { return string(e.kind) + ": " + e.cause.Error() }
func (e *kindError) Cause() error  { return e.cause }
func (e *kindError) Unwrap() error { return e.cause }

// Wrap annotates err with kind, preserving it for later recovery via
// Classify. A nil err returns nil.
func Wrap(err error, kind Kind) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, cause: errors.WithStack(err)}
}

// Classify recovers the Kind from an error produced by Wrap, or
// KindInternal if err carries no recognised kind.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	var ke *kindError
	for e := err; e != nil; e = errors.Unwrap(e) {
		if k, ok := e.(*kindError); ok {
			ke = k
			break
		}
	}
	if ke != nil {
		return ke.kind
	}
	return KindInternal
}

// Message returns a client-safe message: the cause text for any kind except
// internal, which never leaks wrapped detail.
func Message(err error) string {
	if Classify(err) == KindInternal {
		return "internal error"
	}
	return errors.Cause(err).Error()
}
