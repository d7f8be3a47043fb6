package utils

import (
	"fmt"
)

// ResponseCode business response code
type ResponseCode int

// Response codes
const (
	CodeSuccess       ResponseCode = 0
	CodeInvalidParam  ResponseCode = 1001
	CodeShopNotFound  ResponseCode = 2001
	CodeOrderNotFound ResponseCode = 2002
	CodeSaleNotStart  ResponseCode = 3001
	CodeSaleEnded     ResponseCode = 3002
	CodeSoldOut       ResponseCode = 3003
	CodeDuplicateUser ResponseCode = 3004
	CodeRateLimit     ResponseCode = 3005
	CodeInternalError ResponseCode = 5000
)

// AppError application error structure
type AppError struct {
	Code    ResponseCode `json:"code"`
	Message string       `json:"message"`
	Err     error        `json:"-"`
}

// Error implement error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("code: %d, message: %s, error: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
}

// Unwrap implement errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError create new application error
func NewError(code ResponseCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// WrapError wrap error
func WrapError(err error, code ResponseCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Predefined errors
var (
	ErrInvalidParam = NewError(CodeInvalidParam, "invalid parameter")
	ErrShopNotFound = NewError(CodeShopNotFound, "shop not found")

	ErrSaleNotStart  = NewError(CodeSaleNotStart, "sale not started")
	ErrSaleEnded     = NewError(CodeSaleEnded, "sale ended")
	ErrSoldOut       = NewError(CodeSoldOut, "stock not enough")
	ErrDuplicateUser = NewError(CodeDuplicateUser, "one order per user")

	ErrInternalError = NewError(CodeInternalError, "internal server error")
)

// IsAppError check if it's an application error
func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}
