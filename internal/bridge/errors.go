// SPDX-License-Identifier: MPL-2.0

package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrBridge is the root sentinel for bridge failures.
	ErrBridge = errors.New("browser bridge error")
	// ErrAddressInUse is returned when another daemon serves the socket.
	ErrAddressInUse = errors.New("socket address in use")
	// ErrSocketPathUnavailable is returned when the socket directory is
	// missing or not writable.
	ErrSocketPathUnavailable = errors.New("socket path unavailable")
	// ErrInvalidURL is returned for payloads that are not a single UTF-8 line.
	ErrInvalidURL = errors.New("invalid url payload")
)

type (
	// AddressInUseError reports a live daemon already bound to Path.
	AddressInUseError struct {
		Path string
	}

	// SocketPathUnavailableError reports a socket path that cannot be bound.
	SocketPathUnavailableError struct {
		Path string
		Err  error
	}
)

// Error implements the error interface.
func (e *AddressInUseError) Error() string {
	return fmt.Sprintf("another bridge daemon is already listening on %s", e.Path)
}

// Unwrap returns the bridge sentinels.
func (e *AddressInUseError) Unwrap() []error {
	return []error{ErrBridge, ErrAddressInUse}
}

// Error implements the error interface.
func (e *SocketPathUnavailableError) Error() string {
	return fmt.Sprintf("socket path %s is unavailable: %v", e.Path, e.Err)
}

// Unwrap returns the bridge sentinels and the cause.
func (e *SocketPathUnavailableError) Unwrap() []error {
	return []error{ErrBridge, ErrSocketPathUnavailable, e.Err}
}
