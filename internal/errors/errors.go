package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

type ErrorType string

func (e ErrorType) String() string {
	return strings.ToLower(string(e))
}

const (
	ErrInternalError   ErrorType = "Internal Error"
	ErrNotFound        ErrorType = "Not Found"
	ErrInvalidArgument ErrorType = "Invalid Argument"
	ErrInvalidState    ErrorType = "Invalid State"
	ErrFailedPrecond   ErrorType = "Failed Precondition"
	ErrFatalReporting  ErrorType = "Fatal Reporting"
)

// stopTypes are never retried, a job failing with one of them is discarded
var stopTypes = map[ErrorType]bool{
	ErrNotFound:        true,
	ErrInvalidArgument: true,
	ErrInvalidState:    true,
	ErrFailedPrecond:   true,
	ErrFatalReporting:  true,
}

type DomainError struct {
	ErrorType  ErrorType
	Entity     string
	Message    string
	Fields     map[string]interface{}
	WrappedErr error
}

func NewError(errType ErrorType, entity, msg string) *DomainError {
	return &DomainError{
		ErrorType: errType,
		Entity:    entity,
		Message:   msg,
	}
}

func InvalidArgument(entity, msg string) *DomainError {
	return NewError(ErrInvalidArgument, entity, msg)
}

func NotFound(entity, msg string) *DomainError {
	return NewError(ErrNotFound, entity, msg)
}

func InvalidState(entity, msg string) *DomainError {
	return NewError(ErrInvalidState, entity, msg)
}

func FailedPrecondition(entity, msg string) *DomainError {
	return NewError(ErrFailedPrecond, entity, msg)
}

func FatalReporting(entity, msg string, err error) *DomainError {
	return &DomainError{
		ErrorType:  ErrFatalReporting,
		Entity:     entity,
		Message:    msg,
		WrappedErr: err,
	}
}

func InternalError(entity, msg string, err error) *DomainError {
	return &DomainError{
		ErrorType:  ErrInternalError,
		Entity:     entity,
		Message:    msg,
		WrappedErr: err,
	}
}

// Wrap adds context to err. A wrapped DomainError keeps its type, anything
// else is treated as an internal error.
func Wrap(entity, msg string, err error) error {
	if err == nil {
		return nil
	}

	var de *DomainError
	if errors.As(err, &de) {
		return &DomainError{
			ErrorType:  de.ErrorType,
			Entity:     entity,
			Message:    msg,
			WrappedErr: err,
		}
	}
	return InternalError(entity, msg, err)
}

// WithField attaches structured context which is logged alongside the error.
func (e *DomainError) WithField(key string, value interface{}) *DomainError {
	if e.Fields == nil {
		e.Fields = map[string]interface{}{}
	}
	e.Fields[key] = value
	return e
}

func (e *DomainError) Error() string {
	if e.WrappedErr != nil {
		return fmt.Sprintf("%v for entity %v: %v: %v",
			e.ErrorType.String(), e.Entity, e.Message, e.WrappedErr.Error())
	}
	return fmt.Sprintf("%v for entity %v: %v",
		e.ErrorType.String(), e.Entity, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.WrappedErr
}

func (e *DomainError) DebugString() string {
	var wrappedError string
	if e.WrappedErr != nil {
		wrappedError = e.WrappedErr.Error()
	}

	return fmt.Sprintf("%v for %v: %v (%s)",
		e.ErrorType.String(), e.Entity, e.Message, wrappedError)
}

func IsErrorType(err error, errType ErrorType) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.ErrorType == errType
	}
	return false
}

// HasErrorType reports whether err, or any member of an aggregated err, is a
// DomainError of errType.
func HasErrorType(err error, errType ErrorType) bool {
	var me *multierror.Error
	if errors.As(err, &me) {
		for _, e := range me.Errors {
			if HasErrorType(e, errType) {
				return true
			}
		}
		return false
	}
	return IsErrorType(err, errType)
}

// IsStop reports whether err must not be retried. An aggregated error is a
// stop only when every error in it is a stop.
func IsStop(err error) bool {
	if err == nil {
		return false
	}

	var me *multierror.Error
	if errors.As(err, &me) {
		if len(me.Errors) == 0 {
			return false
		}
		for _, e := range me.Errors {
			if !IsStop(e) {
				return false
			}
		}
		return true
	}

	var de *DomainError
	if errors.As(err, &de) {
		return stopTypes[de.ErrorType]
	}
	return false
}

// Fields collects the structured context of every DomainError found in err,
// members of an aggregated err included. The first value seen for a key wins.
func Fields(err error) map[string]interface{} {
	fields := map[string]interface{}{}
	collectFields(err, fields)
	return fields
}

func collectFields(err error, fields map[string]interface{}) {
	var me *multierror.Error
	if errors.As(err, &me) {
		for _, e := range me.Errors {
			collectFields(e, fields)
		}
		return
	}

	for err != nil {
		var de *DomainError
		if !errors.As(err, &de) {
			return
		}
		for k, v := range de.Fields {
			if _, ok := fields[k]; !ok {
				fields[k] = v
			}
		}
		err = de.WrappedErr
	}
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

func New(text string) error {
	return errors.New(text)
}
