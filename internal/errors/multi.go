package errors

import (
	"errors"

	"github.com/hashicorp/go-multierror"
)

type MultiError struct {
	msg    string
	errors []error
}

func NewMultiError(msg string) *MultiError {
	return &MultiError{
		msg: msg,
	}
}

func (m *MultiError) Append(err error) {
	if err != nil {
		m.errors = append(m.errors, err)
	}
}

func (m *MultiError) Len() int {
	return len(m.errors)
}

// ToErr returns nil when nothing was appended. The returned error is a
// *multierror.Error so that IsStop can inspect every member.
func (m *MultiError) ToErr() error {
	if len(m.errors) == 0 {
		return nil
	}

	me := &multierror.Error{
		Errors: m.errors,
		ErrorFormat: func(errs []error) string {
			errStr := m.msg
			for _, err := range errs {
				errStr += "\n " + err.Error()
			}
			return errStr
		},
	}
	return me
}

func IsEmptyError(err error) bool {
	var me *multierror.Error
	if errors.As(err, &me) {
		return len(me.Errors) == 0
	}
	return false
}
