// Package errs defines the tagged error kinds surfaced by the wallet core.
//
// Every failure that crosses a component boundary is an *Error carrying a
// Kind. Callers translate kinds, never message strings.
package errs

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies a failure.
type Kind uint8

const (
	Unknown Kind = iota
	BadInput
	BadMnemonic
	BadAddress
	InsufficientFunds
	InsufficientEncrypted
	NoRecipientKey
	Duplicate
	NonceConflict
	Transient
	NodeRejected
	NotFound
	Auth
	CryptoFailure
	Cancelled
	Timeout
	Busy
)

var kindNames = [...]string{
	Unknown:               "Unknown",
	BadInput:              "BadInput",
	BadMnemonic:           "BadMnemonic",
	BadAddress:            "BadAddress",
	InsufficientFunds:     "InsufficientFunds",
	InsufficientEncrypted: "InsufficientEncrypted",
	NoRecipientKey:        "NoRecipientKey",
	Duplicate:             "Duplicate",
	NonceConflict:         "NonceConflict",
	Transient:             "Transient",
	NodeRejected:          "NodeRejected",
	NotFound:              "NotFound",
	Auth:                  "Auth",
	CryptoFailure:         "CryptoFailure",
	Cancelled:             "Cancelled",
	Timeout:               "Timeout",
	Busy:                  "Busy",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Error is a tagged failure.
type Error struct {
	Kind Kind
	Op   string // operation, e.g. "sender.Send"
	Msg  string // human-readable detail; node messages are kept verbatim
	Err  error  // underlying cause, may be nil

	// RetryAttempts is the number of automatic retries spent before the
	// failure was returned.
	RetryAttempts int
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// StackTrace exposes the stack of the underlying cause, if it carries one.
func (e *Error) StackTrace() pkgerrors.StackTrace {
	var st interface{ StackTrace() pkgerrors.StackTrace }
	if errors.As(e.Err, &st) {
		return st.StackTrace()
	}
	return nil
}

// E builds a tagged error with a message.
func E(kind Kind, op, msg string) *Error {
	e := &Error{Kind: kind, Op: op, Msg: msg}
	if kind.logsStack() {
		e.Err = pkgerrors.New(msg)
	}
	return e
}

// Ef is E with formatting.
func Ef(kind Kind, op, format string, args ...any) *Error {
	return E(kind, op, fmt.Sprintf(format, args...))
}

// Wrap tags err. If err already is an *Error its kind is preserved unless
// it is Unknown.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var inner *Error
	if errors.As(err, &inner) && inner.Kind != Unknown {
		kind = inner.Kind
	}
	if kind.logsStack() {
		err = pkgerrors.WithStack(err)
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, or Unknown for untagged errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err is tagged with kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Attempts returns the retry count recorded on err.
func Attempts(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAttempts
	}
	return 0
}

// WithAttempts returns a copy of err with RetryAttempts set.
func WithAttempts(err error, n int) error {
	var e *Error
	if !errors.As(err, &e) {
		return &Error{Kind: Unknown, Err: err, RetryAttempts: n}
	}
	cp := *e
	cp.RetryAttempts = n
	return &cp
}

// IsRetryableSubmit reports whether a submit failure qualifies for the
// one-shot fresh-nonce retry.
func IsRetryableSubmit(err error) bool {
	k := KindOf(err)
	return k == Duplicate || k == NonceConflict
}

// Redact converts an unexpected failure into an Unknown error whose message
// carries only the operation name. Tagged errors pass through unchanged.
func Redact(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != Unknown {
		return err
	}
	return &Error{Kind: Unknown, Op: op, Msg: "internal error", Err: pkgerrors.WithStack(errors.New("redacted"))}
}

func (k Kind) logsStack() bool {
	return k == CryptoFailure || k == Unknown
}

// LogsStack reports whether failures of this kind are logged with a stack.
func (k Kind) LogsStack() bool { return k.logsStack() }
