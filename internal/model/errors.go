package model

import "fmt"

// Kind identifies the class of an engine error, independent of its
// wrapped cause. Callers should switch on Kind via errors.As, not on
// the concrete *Error type.
type Kind int

const (
	KindInvalidInput Kind = iota
	KindEmbedFailed
	KindStoreFailed
	KindNotFound
	KindConflict
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindEmbedFailed:
		return "EmbedFailed"
	case KindStoreFailed:
		return "StoreFailed"
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// Error is the engine's uniform error envelope. Fields beyond Kind are
// populated on a best-effort basis depending on which op raised it.
type Error struct {
	Kind     Kind
	Sector   Sector
	Provider string
	Op       string
	NotFoundKind string
	NotFoundID   string
	Reason   string
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindEmbedFailed:
		return fmt.Sprintf("embed failed: sector=%s provider=%s: %s", e.Sector, e.Provider, e.detail())
	case KindStoreFailed:
		return fmt.Sprintf("store failed: %s", e.detail())
	case KindNotFound:
		return fmt.Sprintf("not found: %s %s", e.NotFoundKind, e.NotFoundID)
	case KindConflict:
		return fmt.Sprintf("conflict: %s", e.detail())
	case KindTimeout:
		return fmt.Sprintf("timeout: op=%s", e.Op)
	default:
		return fmt.Sprintf("invalid input: %s", e.detail())
	}
}

func (e *Error) detail() string {
	if e.Reason != "" {
		return e.Reason
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unspecified"
}

func (e *Error) Unwrap() error { return e.Err }

func ErrInvalidInput(reason string) error {
	return &Error{Kind: KindInvalidInput, Reason: reason}
}

func ErrEmbedFailed(sector Sector, provider, reason string, cause error) error {
	return &Error{Kind: KindEmbedFailed, Sector: sector, Provider: provider, Reason: reason, Err: cause}
}

func ErrStoreFailed(reason string, cause error) error {
	return &Error{Kind: KindStoreFailed, Reason: reason, Err: cause}
}

func ErrNotFound(kind, id string) error {
	return &Error{Kind: KindNotFound, NotFoundKind: kind, NotFoundID: id}
}

func ErrConflict(reason string) error {
	return &Error{Kind: KindConflict, Reason: reason}
}

func ErrTimeout(op string, cause error) error {
	return &Error{Kind: KindTimeout, Op: op, Err: cause}
}

// IsKind reports whether err (or any error it wraps) is an *Error of
// the given kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	for err != nil {
		if ee, ok := err.(*Error); ok {
			e = ee
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == k
}
