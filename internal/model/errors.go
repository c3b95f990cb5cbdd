package model

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches every ConfigurationError with errors.Is.
	ErrConfiguration = errors.New("configuration error")
	// ErrData matches every DataError with errors.Is.
	ErrData = errors.New("data error")
)

// ConfigurationError reports an invalid setup: a zero-width scoring range,
// a bin label/count mismatch, a malformed rating matrix or a zero-sum
// rating vector.
type ConfigurationError struct {
	Component string // scoring, ahp, ranking, pipeline
	Subject   string // characteristic, hierarchy node or parameter name
	Reason    string
}

func (e *ConfigurationError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s: configuration error: %s", e.Component, e.Reason)
	}
	return fmt.Sprintf("%s: configuration error in %q: %s", e.Component, e.Subject, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// DataError reports malformed input tables or a required measurement that
// is missing while exclusion is not allowed.
type DataError struct {
	Table   string
	Subject string
	Reason  string
}

func (e *DataError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("data error in table %q: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("data error in table %q at %s: %s", e.Table, e.Subject, e.Reason)
}

func (e *DataError) Is(target error) bool { return target == ErrData }

// ConfigErrorf builds a ConfigurationError with a formatted reason.
func ConfigErrorf(component, subject, format string, args ...any) error {
	return &ConfigurationError{Component: component, Subject: subject, Reason: fmt.Sprintf(format, args...)}
}

// DataErrorf builds a DataError with a formatted reason.
func DataErrorf(table, subject, format string, args ...any) error {
	return &DataError{Table: table, Subject: subject, Reason: fmt.Sprintf(format, args...)}
}
