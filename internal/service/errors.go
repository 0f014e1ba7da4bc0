package service

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrLockedOut         = errors.New("locked out")
	ErrBadCredentials    = errors.New("bad credentials")
	ErrEmailTaken        = errors.New("email taken")
	ErrBidTooLow         = errors.New("bid too low")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrUnknownStatus     = errors.New("unknown item status")
	ErrEmptyCart         = errors.New("cart is empty")
)

// User-facing messages.
const (
	MsgEmailTaken      = "An account already exists for this email address!"
	MsgPasswordsDiffer = "Your passwords do not match!"
	MsgWeakPassword    = "Your password is not strong enough."
	MsgBadCredentials  = "Username or Password did not match!"
	MsgLockedOut       = "Your account has been temporarily locked out because of too many failed login attempts."
	MsgCartItemGone    = "An item in your cart is no longer available and has been removed. Please review your cart."
)

// ValidationError carries a message that is safe to show to the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// notFound maps gorm's missing-row error to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
