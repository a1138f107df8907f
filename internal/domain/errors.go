package domain

import "fmt"

type ErrCode string

const (
	CodeValidation ErrCode = "validation_error"
	CodeNotFound   ErrCode = "not_found"
	CodeConfig     ErrCode = "config_error"
	CodeUpstream   ErrCode = "upstream_error"
)

type AppError struct {
	Code    ErrCode
	Message string
	Meta    map[string]string
	Err     error
}

func (e *AppError) Error() string {
	if len(e.Meta) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Meta)
}

func (e *AppError) Unwrap() error { return e.Err }

func ErrValidation(msg string) error { return &AppError{Code: CodeValidation, Message: msg} }
func ErrValidationMeta(msg string, meta map[string]string) error {
	return &AppError{Code: CodeValidation, Message: msg, Meta: meta}
}
func ErrNotFound(msg string) error { return &AppError{Code: CodeNotFound, Message: msg} }
func ErrConfig(msg string) error   { return &AppError{Code: CodeConfig, Message: msg} }

// ErrUpstream keeps the cause so callers can still inspect it with errors.As.
func ErrUpstream(msg string, cause error) error {
	return &AppError{Code: CodeUpstream, Message: msg, Err: cause}
}
