// Package engerr defines the engine's error taxonomy: every failure surfaced
// across session start/tick/end carries one of a small set of kinds so
// callers can decide, without string matching, whether a failure aborts the
// session or is a per-frame drop-and-log.
package engerr

import "fmt"

// Kind classifies a failure by the subsystem that produced it and the
// severity it implies for the enclosing MovieSession.
type Kind int

const (
	// Config covers invalid output directories, filenames, unknown
	// encoders, unknown extensions, and bad cvar values. Aborts the
	// current command with no side effects left behind.
	Config Kind = iota
	// Graphics covers shared-surface creation failure, device-lost, and
	// map failures. A map failure mid-session drops the frame; a
	// creation failure aborts Start.
	Graphics
	// Codec covers encoder open, packet send/receive, and container
	// write failures. Open failures abort Start; runtime failures drop
	// the frame and log.
	Codec
	// Extension covers a missing required export or a panic/error from
	// an extension's query/init. The extension is skipped and reported;
	// the session proceeds.
	Extension
	// Fatal covers out-of-memory or a lost compute device mid-session.
	// The session is forcibly ended and partial output flushed where
	// possible.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "ConfigError"
	case Graphics:
		return "GraphicsError"
	case Codec:
		return "CodecError"
	case Extension:
		return "ExtensionError"
	case Fatal:
		return "FatalError"
	default:
		return "UnknownError"
	}
}

// Error wraps an underlying cause with a Kind, producing the short,
// single-line, kind-prefixed message the propagation policy requires.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs a kinded error without an underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs a kinded error around an existing cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// IsFatal reports whether err is (or wraps) a Fatal-kind error, the only
// kind that forces session teardown regardless of which call unwound it.
func IsFatal(err error) bool {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind == Fatal
	}
	return false
}

// Aborts reports whether err, surfaced from Start, should prevent the
// session from reaching Running (Config/Graphics/Codec/Fatal all do;
// Extension alone does not).
func Aborts(err error) bool {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind != Extension
	}
	return err != nil
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
