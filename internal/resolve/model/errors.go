package model

// Error is a domain error with a stable code.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

// Is matches errors by code so wrapped or re-created errors compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	ErrNotFound         = NewError("NOT_FOUND", "resource not found")
	ErrInvalidInput     = NewError("INVALID_INPUT", "invalid input")
	ErrAliasConflict    = NewError("ALIAS_CONFLICT", "alias already maps to a different product")
	ErrInvalidQuantity  = NewError("INVALID_QUANTITY", "invalid quantity")
	ErrPriceUnavailable = NewError("PRICE_UNAVAILABLE", "product has no base price")
	ErrLineConfirmed    = NewError("LINE_CONFIRMED", "line is already confirmed")
)

// Errorf returns an error with the code of base and a specific message.
func Errorf(base *Error, message string) *Error {
	return &Error{Code: base.Code, Message: message}
}
