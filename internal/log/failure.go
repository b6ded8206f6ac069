package log

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Klingon-tech/octwallet/internal/errs"
)

// Failure starts an event for err on l. Kinds that carry a stack are
// logged at error level with the stack attached, everything else at warn.
func Failure(l zerolog.Logger, err error) *zerolog.Event {
	if errs.KindOf(err).LogsStack() {
		return l.Error().Stack().Err(err)
	}
	return l.Warn().Err(err)
}

// Surface is applied where an error leaves a wallet operation. Unexpected
// failures are logged with their stack and replaced by a redacted error
// naming only op; tagged errors are logged at debug and returned as is.
func Surface(l zerolog.Logger, op string, err error) error {
	if err == nil {
		return nil
	}
	if !errs.KindOf(err).LogsStack() {
		l.Debug().Err(err).Str("op", op).Msg("Operation failed")
		return err
	}
	l.Error().Stack().Err(withStack(err)).Str("op", op).Msg("Unexpected failure")
	return errs.Redact(op, err)
}

// withStack records the caller's stack on err unless it already has one.
func withStack(err error) error {
	var st interface{ StackTrace() pkgerrors.StackTrace }
	if errors.As(err, &st) && st.StackTrace() != nil {
		return err
	}
	return pkgerrors.WithStack(err)
}
