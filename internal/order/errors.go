package order

import (
	"errors"
	"net/http"
)

type ErrorCode string

const (
	CodeEmptyCart        ErrorCode = "EMPTY_CART"
	CodeNoOpenOrder      ErrorCode = "NO_OPEN_ORDER"
	CodeOrderNotEditable ErrorCode = "ORDER_NOT_EDITABLE"
	CodeLineNotFound     ErrorCode = "LINE_NOT_FOUND"
	CodeInvalidQuantity  ErrorCode = "INVALID_QUANTITY"
	CodeStoreFailure     ErrorCode = "STORE_FAILURE"
)

type Error struct {
	Code       ErrorCode
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches on Code so wrapped copies compare equal to the sentinels below.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

func newError(code ErrorCode, message string, status int) *Error {
	return &Error{Code: code, Message: message, StatusCode: status}
}

var (
	ErrEmptyCart        = newError(CodeEmptyCart, "Cart is empty", http.StatusBadRequest)
	ErrNoOpenOrder      = newError(CodeNoOpenOrder, "Table has no open order", http.StatusNotFound)
	ErrOrderNotEditable = newError(CodeOrderNotEditable, "Order is no longer open", http.StatusConflict)
	ErrLineNotFound     = newError(CodeLineNotFound, "Order line not found", http.StatusNotFound)
	ErrInvalidQuantity  = newError(CodeInvalidQuantity, "Quantity is out of range", http.StatusBadRequest)
)

// StoreError marks a failure reported by the order store.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &storeError{op: op, err: err}
}

type storeError struct {
	op  string
	err error
}

func (e *storeError) Error() string {
	return "order store " + e.op + ": " + e.err.Error()
}

func (e *storeError) Unwrap() error {
	return e.err
}

func IsStoreError(err error) bool {
	var se *storeError
	return errors.As(err, &se)
}
