// Package errs declares the error categories the notifier distinguishes.
//
// Each category is a marker: wrap the underlying failure with context and mark
// it, then test with errors.Is. Only configuration errors at startup are fatal.
package errs

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrConfig marks a missing or invalid configuration.
	ErrConfig = errors.New("configuration error")
	// ErrTransientStore marks a failed database query; the operation is retried next tick.
	ErrTransientStore = errors.New("transient store error")
	// ErrDispatch marks a failed alert delivery.
	ErrDispatch = errors.New("dispatch error")
	// ErrSchedule marks an unusable cron expression.
	ErrSchedule = errors.New("schedule error")
	// ErrStateIO marks an unreadable or unwritable state file.
	ErrStateIO = errors.New("state file error")
)

// Config wraps err as a configuration error.
func Config(err error, format string, args ...any) error {
	return mark(err, ErrConfig, format, args...)
}

// Store wraps err as a transient store error.
func Store(err error, format string, args ...any) error {
	return mark(err, ErrTransientStore, format, args...)
}

// Dispatch wraps err as a dispatch error.
func Dispatch(err error, format string, args ...any) error {
	return mark(err, ErrDispatch, format, args...)
}

// Schedule wraps err as a schedule error.
func Schedule(err error, format string, args ...any) error {
	return mark(err, ErrSchedule, format, args...)
}

// StateIO wraps err as a state file error.
func StateIO(err error, format string, args ...any) error {
	return mark(err, ErrStateIO, format, args...)
}

func mark(err, kind error, format string, args ...any) error {
	if err == nil {
		err = errors.Newf(format, args...)
	} else {
		err = errors.Wrapf(err, format, args...)
	}
	return errors.Mark(err, kind)
}
