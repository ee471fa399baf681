package machine

import (
	"fmt"
	goerrors "github.com/go-errors/errors"
)

type DeviceNotFoundError struct {
	Kind string
	Port string
}

func (err *DeviceNotFoundError) Error() string {
	if err.Port == "" {
		return fmt.Sprintf("no %s device found", err.Kind)
	}

	return fmt.Sprintf("no %s device found on port %s", err.Kind, err.Port)
}

type CommandRejectedError struct {
	Port    string
	Command string
	Err     error
}

func (err *CommandRejectedError) Error() string {
	return fmt.Sprintf("device on port %s rejected command %s: %v", err.Port, err.Command, err.Err)
}

// IsDeviceNotFound reports whether err was caused by a missing device.
// It looks through errors wrapped by go-errors and pkg/errors.
func IsDeviceNotFound(err error) bool {
	_, ok := unwrap(err).(*DeviceNotFoundError)
	return ok
}

// IsCommandRejected reports whether err was caused by a refused command.
func IsCommandRejected(err error) bool {
	_, ok := unwrap(err).(*CommandRejectedError)
	return ok
}

type causer interface {
	Cause() error
}

func unwrap(err error) error {
	for err != nil {
		switch e := err.(type) {
		case *DeviceNotFoundError, *CommandRejectedError:
			return e
		case *goerrors.Error:
			err = e.Err
		case causer:
			err = e.Cause()
		case interface{ Unwrap() error }:
			err = e.Unwrap()
		default:
			return err
		}
	}

	return nil
}
