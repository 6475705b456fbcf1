package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain error codes.
const (
	CodeAlreadyExists     = "ALREADY_EXISTS"
	CodeNotPending        = "NOT_PENDING"
	CodeNoRowsUpdated     = "NO_ROWS_UPDATED"
	CodeSelfAuthorization = "SELF_AUTHORIZATION"
	CodeRemarksRequired   = "REMARKS_REQUIRED"
	CodeNestedTransaction = "NESTED_TRANSACTION"
	CodeStoreFailure      = "STORE_FAILURE"
)

// DomainError is a business-rule violation or a mutation that touched no rows.
type DomainError struct {
	Code string
	Msg  string
	Err  error
}

func NewDomainError(code, msg string) DomainError {
	return DomainError{Code: code, Msg: msg}
}

func (e DomainError) Error() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Err != nil && e.Code != "":
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Code != "":
		return e.Code
	default:
		return "domain error"
	}
}

func (e DomainError) Unwrap() error {
	return e.Err
}

// InvalidArgumentError reports a malformed call caught before any store access.
type InvalidArgumentError struct {
	Arg string
	Msg string
}

func (e InvalidArgumentError) Error() string {
	if e.Arg == "" {
		return "invalid argument: " + e.Msg
	}
	return fmt.Sprintf("invalid argument %q: %s", e.Arg, e.Msg)
}

func InvalidArgument(arg, format string, args ...any) InvalidArgumentError {
	return InvalidArgumentError{Arg: arg, Msg: fmt.Sprintf(format, args...)}
}

type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"message"`
}

// ValidationError carries every failing field of a request.
type ValidationError struct {
	Fields []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Msg))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type NotFoundError struct {
	Resource string
	Key      string
	Err      error
}

func (e NotFoundError) Error() string {
	switch {
	case e.Resource == "":
		return "not found"
	case e.Key == "":
		return fmt.Sprintf("%s not found", e.Resource)
	default:
		return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
	}
}

func (e NotFoundError) Unwrap() error { return e.Err }

// OperationFailedError wraps a backing-store or transport fault.
type OperationFailedError struct {
	Op  string
	Err error
}

func (e OperationFailedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failed", e.Op)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e OperationFailedError) Unwrap() error { return e.Err }

type CancelledError struct {
	Op  string
	Err error
}

func (e CancelledError) Error() string {
	return fmt.Sprintf("%s cancelled: %v", e.Op, e.Err)
}

func (e CancelledError) Unwrap() error { return e.Err }

// MultipleResultsError is returned when a single-row query yields more rows.
type MultipleResultsError struct {
	Op string
}

func (e MultipleResultsError) Error() string {
	return fmt.Sprintf("%s returned more than one row", e.Op)
}

func IsDomain(err error) bool {
	var target DomainError
	return errors.As(err, &target)
}

// HasCode reports whether err is a DomainError carrying code.
func HasCode(err error, code string) bool {
	var target DomainError
	return errors.As(err, &target) && target.Code == code
}

func IsInvalidArgument(err error) bool {
	var target InvalidArgumentError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsOperationFailed(err error) bool {
	var target OperationFailedError
	return errors.As(err, &target)
}

func IsCancelled(err error) bool {
	var target CancelledError
	return errors.As(err, &target)
}

func IsMultipleResults(err error) bool {
	var target MultipleResultsError
	return errors.As(err, &target)
}

// IsPassThrough reports errors that cross the workflow boundary unchanged.
func IsPassThrough(err error) bool {
	return IsDomain(err) || IsInvalidArgument(err) || IsValidation(err) ||
		IsNotFound(err) || IsCancelled(err)
}

// AsValidation extracts a ValidationError from err.
func AsValidation(err error, target *ValidationError) bool {
	return errors.As(err, target)
}

// AsDomain extracts a DomainError from err.
func AsDomain(err error, target *DomainError) bool {
	return errors.As(err, target)
}
