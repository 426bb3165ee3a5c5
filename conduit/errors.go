package conduit

import (
	"errors"

	"github.com/egaotan/rwa-conduit/conversion"
)

// Class groups failures by what the caller has to fix before retrying.
type Class string

const (
	ClassAuthorization Class = "authorization"
	ClassConfiguration Class = "configuration"
	ClassLiquidity     Class = "liquidity"
	ClassArithmetic    Class = "arithmetic"
	ClassLifecycle     Class = "lifecycle"
	ClassUnknown       Class = "unknown"
)

// Error is a conduit failure with a stable machine-readable code.
type Error struct {
	Code  string
	Class Class
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return "conduit: " + e.Code
}

var (
	ErrNotAuthorized  = &Error{Code: "not-authorized", Class: ClassAuthorization}
	ErrNotPusher      = &Error{Code: "not-mate", Class: ClassAuthorization}
	ErrNotOperator    = &Error{Code: "not-operator", Class: ClassAuthorization}
	ErrNotWhitelisted = &Error{Code: "not-bud", Class: ClassAuthorization}

	ErrInvalidTo           = &Error{Code: "invalid-to", Class: ClassConfiguration}
	ErrInvalidQuitTo       = &Error{Code: "invalid-quit-to", Class: ClassConfiguration}
	ErrInvalidAddress      = &Error{Code: "invalid-address", Class: ClassConfiguration}
	ErrWrongDai            = &Error{Code: "wrong-dai-for-psm", Class: ClassConfiguration}
	ErrWrongGem            = &Error{Code: "wrong-gem-for-psm", Class: ClassConfiguration}
	ErrUnrecognisedParam   = &Error{Code: "unrecognised-param", Class: ClassConfiguration}
	ErrInvalidValue        = &Error{Code: "invalid-value", Class: ClassConfiguration}
	ErrUnsupportedRole     = &Error{Code: "unsupported-role", Class: ClassConfiguration}
	ErrRecoveryUnset       = &Error{Code: "invalid-recovery", Class: ClassConfiguration}
	ErrUnsupportedSchema   = &Error{Code: "unsupported-schema", Class: ClassConfiguration}
	ErrInsufficientBalance = &Error{Code: "insufficient-balance", Class: ClassLiquidity}
	ErrInsufficientSwap    = &Error{Code: "insufficient-swap-amount", Class: ClassLiquidity}

	ErrNotPicked = &Error{Code: "to-not-picked", Class: ClassLifecycle}
	ErrNotHooked = &Error{Code: "psm-not-hooked", Class: ClassLifecycle}
	ErrNotPal    = &Error{Code: "psm-not-pal", Class: ClassLifecycle}
	ErrNotLive   = &Error{Code: "vat-not-live", Class: ClassLifecycle}
	ErrStillLive = &Error{Code: "vat-still-live", Class: ClassLifecycle}
	ErrReentrant = &Error{Code: "reentrant-call", Class: ClassLifecycle}
)

// ClassOf classifies err. Collaborator errors that the conduit merely propagates are
// ClassUnknown unless they come from the conversion engine.
func ClassOf(err error) Class {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Class
	}
	switch {
	case errors.Is(err, conversion.ErrUnsupportedDecimals):
		return ClassConfiguration
	case errors.Is(err, conversion.ErrOverflow),
		errors.Is(err, conversion.ErrUnderflow),
		errors.Is(err, conversion.ErrDivisionByZero),
		errors.Is(err, conversion.ErrFeeTooHigh):
		return ClassArithmetic
	}
	return ClassUnknown
}
