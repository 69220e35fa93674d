package service

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"syscall"
	"time"

	"google.golang.org/api/googleapi"
)

type temporaryIf interface{ Temporary() bool }
type temporaryError struct{ error }

func (e temporaryError) Temporary() bool { return true }
func (e *temporaryError) Unwrap() error  { return e.error }

// MakeTemporary marks the error as transient (see Temporary)
func MakeTemporary(err error) error { return &temporaryError{err} }

type fatalIf interface{ Fatal() bool }
type fatalError struct{ error }

func (e fatalError) Fatal() bool    { return true }
func (e *fatalError) Unwrap() error { return e.error }

// MakeFatal marks the error as non-recoverable (see Fatal)
func MakeFatal(err error) error { return &fatalError{err} }

// Temporary inspects the error trace and returns whether the error is transient
func Temporary(err error) bool {
	var uerr *neturl.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}

	// Some syscall statuses are transient whatever the wrapping says
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EIO, syscall.EBUSY, syscall.ECANCELED, syscall.ECONNABORTED, syscall.ECONNRESET, syscall.ENOMEM, syscall.EPIPE:
			return true
		}
	}

	// Explicitly marked errors
	var tmp temporaryIf
	if errors.As(err, &tmp) {
		return tmp.Temporary()
	}
	var gapiError *googleapi.Error
	if errors.As(err, &gapiError) {
		return gapiError.Code == 429 || gapiError.Code == 500
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// Fatal inspects the error and returns whether it's a fatal error
func Fatal(err error) bool {
	var fat fatalIf
	if errors.As(err, &fat) {
		return fat.Fatal()
	}
	return false
}

// MergeErrors, appending texts
// if priorityToError is true, priority to the fatal error then to the temporary
// else, priority to no error, then to the temporary and finally to the fatal error.
func MergeErrors(priorityToError bool, err error, newErrs ...error) error {
	if len(newErrs) == 0 {
		return err
	}
	newErr := newErrs[0]

	if newErr == nil {
		if !priorityToError {
			return nil
		}
	} else if err == nil {
		err = newErr
	} else if priorityToError != Temporary(err) {
		err = fmt.Errorf("%w\n %v", err, newErr)
	} else {
		err = fmt.Errorf("%w\n %v", newErr, err)
	}
	return MergeErrors(priorityToError, err, newErrs[1:]...)
}

// Retriable calls fn until it succeeds, waiting delay after each failed
// attempt, up to tries attempts. Fatal errors abort immediately.
// The last error is returned.
func Retriable(ctx context.Context, fn func() error, delay time.Duration, tries int) error {
	var err error
	for range tries {
		if err = fn(); err == nil {
			return nil
		}
		if Fatal(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return MergeErrors(true, err, ctx.Err())
		case <-time.After(delay):
		}
	}
	return err
}
