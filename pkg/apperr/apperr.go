package apperr

import "errors"

// ValidationError marks a structural data invariant violation (malformed band
// ranges, negative amounts, missing required fields). It blocks the write that
// raised it.
type ValidationError struct {
	Code    string
	Message string
}

func (e ValidationError) Error() string { return e.Message }

// PolicyError marks a business-rule violation raised by an explicit user
// action: missing approval team, unauthorized approver, amount outside an
// approver's band, contract not approved or not running, order total exceeding
// the remaining contract balance.
type PolicyError struct {
	Code    string
	Message string
}

func (e PolicyError) Error() string { return e.Message }

func Validation(code, message string) error {
	return ValidationError{Code: code, Message: message}
}

func Policy(code, message string) error {
	return PolicyError{Code: code, Message: message}
}

func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

func IsPolicy(err error) bool {
	var pe PolicyError
	return errors.As(err, &pe)
}
