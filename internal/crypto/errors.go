package crypto

import (
	"errors"
	"fmt"
)

// CryptoError represents a failed crypto layer operation with structured context.
// It supports errors.Is() and errors.As() through Unwrap.
type CryptoError struct {
	Op        string // Operation: "resolve", "hash", "sign", "encrypt", "parse", "export", ...
	TypeClass string // Algorithm type class involved (if applicable)
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *CryptoError) Error() string {
	if e.TypeClass != "" {
		return fmt.Sprintf("crypto %s [%s]: %v", e.Op, e.TypeClass, e.Err)
	}
	return fmt.Sprintf("crypto %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CryptoError) Unwrap() error { return e.Err }

// newError creates a CryptoError for op.
func newError(op, typeClass string, err error) *CryptoError {
	return &CryptoError{Op: op, TypeClass: typeClass, Err: err}
}

// familyError is a sentinel that also reports membership in the ErrCrypto family.
type familyError struct {
	msg string
}

func (e *familyError) Error() string { return e.msg }

// Is reports membership in the CryptoException family.
func (e *familyError) Is(target error) bool { return target == ErrCrypto }

// Sentinel errors for the crypto layer.
// Use errors.Is() to check for these errors through the error chain.
var (
	// ErrUnsupportedTypeClass indicates an unknown algorithm identifier.
	ErrUnsupportedTypeClass = errors.New("unsupported type class")

	// ErrNoDefault indicates that no default implementation is available for a base.
	ErrNoDefault = errors.New("no default implementation available")

	// ErrRegistrationConflict indicates two different implementations for one type class.
	ErrRegistrationConflict = errors.New("conflicting registration")

	// ErrClassNotOfExpectedType indicates a registered implementation has the wrong shape.
	// This is a registration bug, not an input error.
	ErrClassNotOfExpectedType = errors.New("implementation is not of the expected type")

	// ErrCrypto is the root of the native cryptographic failure family.
	ErrCrypto = errors.New("cryptographic operation failed")

	// ErrOperationFailed indicates a native call failed with no more specific classification.
	ErrOperationFailed error = &familyError{"operation failed"}

	// ErrPasswordRequired indicates encrypted key material was supplied without a password.
	ErrPasswordRequired error = &familyError{"password required"}

	// ErrDecryptionFailed indicates the supplied password could not decrypt the key material.
	ErrDecryptionFailed error = &familyError{"decryption failed"}

	// ErrMalformedKey indicates key material could not be parsed.
	ErrMalformedKey error = &familyError{"malformed key material"}

	// ErrMissingArgument indicates a required component or argument is absent.
	ErrMissingArgument = errors.New("missing argument")

	// ErrUnsupportedValue indicates a value outside the accepted set (e.g. hash for signature).
	ErrUnsupportedValue = errors.New("unsupported value")

	// ErrUnsupported indicates an unusable configuration, e.g. a key too small for its padding.
	ErrUnsupported = errors.New("unsupported configuration")

	// ErrPersistence indicates a file or stream failure.
	ErrPersistence = errors.New("persistence error")
)

// isBlocking reports whether err must always propagate, even from probes.
func isBlocking(err error) bool {
	return errors.Is(err, ErrPasswordRequired) || errors.Is(err, ErrDecryptionFailed)
}

// Probe runs fn to test whether an optional capability is available.
// Generic failures and panics are reported as (false, nil). ErrPasswordRequired and
// ErrDecryptionFailed are returned unchanged since they mean the caller must supply input.
func Probe(fn func() error) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, nil
		}
	}()
	if e := fn(); e != nil {
		if isBlocking(e) {
			return false, e
		}
		return false, nil
	}
	return true, nil
}

// nativeError translates an error returned by the native library.
func nativeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CryptoError
	if errors.As(err, &ce) {
		return err
	}
	return newError(op, "", fmt.Errorf("%w: %w", ErrOperationFailed, err))
}
