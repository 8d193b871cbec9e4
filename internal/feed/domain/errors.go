package domain

import (
	"errors"
	"fmt"
)

// Error classes of a feed build. Concrete errors wrap one of these, so
// callers classify with errors.Is.
var (
	// ErrRange marks identifiers that would collide or leave the namespace.
	ErrRange = errors.New("range_error")
	// ErrDomain marks unmapped codes and corrupted upstream values.
	ErrDomain = errors.New("domain_error")
	// ErrConfiguration marks missing or invalid integration options.
	ErrConfiguration = errors.New("configuration_error")
)

func RangeErrorf(format string, args ...any) error {
	return classed(ErrRange, format, args...)
}

func DomainErrorf(format string, args ...any) error {
	return classed(ErrDomain, format, args...)
}

func ConfigErrorf(format string, args ...any) error {
	return classed(ErrConfiguration, format, args...)
}

// classedError prints only its message; the class is reachable through
// Unwrap. Feed errors are shown verbatim to the CRM.
type classedError struct {
	class error
	msg   string
}

func (e *classedError) Error() string { return e.msg }

func (e *classedError) Unwrap() error { return e.class }

func classed(class error, format string, args ...any) error {
	return &classedError{class: class, msg: fmt.Sprintf(format, args...)}
}

// IsFeedError reports whether err belongs to one of the feed error classes.
func IsFeedError(err error) bool {
	return errors.Is(err, ErrRange) || errors.Is(err, ErrDomain) || errors.Is(err, ErrConfiguration)
}
