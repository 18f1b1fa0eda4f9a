package core

import (
	"errors"
	"fmt"
)

var (
	// ErrFatal marks GPU object creation failures and broken resource
	// references. Partial GPU state is never resumed after it.
	ErrFatal = errors.New("fatal engine error")

	ErrSwapchainBooting    = errors.New("swapchain resized or recreated, booting")
	ErrSwapchainOutOfDate  = errors.New("swapchain out of date")
	ErrTimeout             = errors.New("timed out waiting for the device")
	ErrUnknown             = errors.New("unknown error")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrUnsupportedResource = errors.New("unsupported resource")
)

type fatalError struct {
	msg   string
	cause error
}

func (e *fatalError) Error() string {
	return e.msg
}

func (e *fatalError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrFatal}
	}
	return []error{ErrFatal, e.cause}
}

// Fatalf builds an error that matches ErrFatal with errors.Is. A %w verb in
// format keeps the wrapped cause reachable too.
func Fatalf(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	return &fatalError{msg: err.Error(), cause: errors.Unwrap(err)}
}

// AsFatal tags an existing error as fatal, keeping its message.
func AsFatal(err error) error {
	if err == nil || errors.Is(err, ErrFatal) {
		return err
	}
	return &fatalError{msg: err.Error(), cause: err}
}

func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}
