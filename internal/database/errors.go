package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001":
			return ErrorClassSerialization
		case "40P01":
			return ErrorClassDeadlock
		case "55P03":
			return ErrorClassTransient
		case "23505", "23503", "23502", "23514":
			return ErrorClassPermanent
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrorClassPermanent
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

// IsUniqueViolation reports whether err is a unique_violation. When
// constraints are given, the violated constraint must be one of them.
func IsUniqueViolation(err error, constraints ...string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return false
	}
	if len(constraints) == 0 {
		return true
	}
	for _, c := range constraints {
		if pqErr.Constraint == c {
			return true
		}
	}
	return false
}

// ErrorKind is the client-facing category of a failed operation.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindForbidden
	KindUnauthorized
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Validation(msg string) *Error {
	return NewError(KindValidation, msg)
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	ErrUserNotFound       = NewError(KindNotFound, "user not found")
	ErrEmailTaken         = NewError(KindConflict, "email already registered")
	ErrInvalidCredentials = NewError(KindUnauthorized, "invalid credentials")
	ErrInvalidToken       = NewError(KindUnauthorized, "invalid token")
	ErrForbidden          = NewError(KindForbidden, "forbidden")

	ErrProductNotFound      = NewError(KindNotFound, "product not found")
	ErrProductUnavailable   = NewError(KindNotFound, "product not available")
	ErrVariantNotFound      = NewError(KindNotFound, "variant not found")
	ErrVariantRequired      = NewError(KindValidation, "variant_id is required for this product")
	ErrVariantExists        = NewError(KindConflict, "variant already exists for this product (colour+size or sku)")
	ErrVariantUnavailable   = NewError(KindConflict, "a variant is no longer available")
	ErrOptimisticLockFailed = NewError(KindConflict, "variant was modified concurrently, reload and retry")

	ErrOrderNotFound     = NewError(KindNotFound, "order not found")
	ErrItemNotFound      = NewError(KindNotFound, "item not found")
	ErrOrderNotEditable  = NewError(KindConflict, "order is not editable")
	ErrOrderNotCart      = NewError(KindConflict, "order cannot be checked out")
	ErrCartEmpty         = NewError(KindConflict, "cart is empty")
	ErrNotEnoughStock    = NewError(KindConflict, "not enough stock")
	ErrInsufficientStock = NewError(KindConflict, "insufficient stock during checkout")
	ErrNotShippable      = NewError(KindConflict, "only paid orders can be shipped")
	ErrNotDeliverable    = NewError(KindConflict, "only shipped orders can be delivered")
	ErrInvalidStatus     = NewError(KindValidation, "status must be one of: shipped, delivered")
)
