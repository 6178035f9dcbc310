package export

import (
	"errors"
	"fmt"
)

// Kind classifies export failures so callers can map them to responses.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindProbe
	KindRender
	KindConcat
	KindTimeout
	KindNotFound
	KindNotReady
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindProbe:
		return "probe"
	case KindRender:
		return "render"
	case KindConcat:
		return "concat"
	case KindTimeout:
		return "timeout"
	case KindNotFound:
		return "not_found"
	case KindNotReady:
		return "not_ready"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is returned by every export phase. Output holds the external tool's
// diagnostic output verbatim when one was involved.
type Error struct {
	Kind    Kind
	Message string
	Output  string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Output != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Output)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds an *Error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
