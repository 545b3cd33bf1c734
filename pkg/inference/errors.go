package inference

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrNotReady is returned when Infer is called before a model is bound.
	ErrNotReady = errors.New("inference: model not ready")

	// ErrSetupFailed is returned when a model reference cannot be loaded.
	ErrSetupFailed = errors.New("inference: setup failed")

	// ErrOutputShape is returned when the model outputs match neither
	// expected layout.
	ErrOutputShape = errors.New("inference: unexpected output shape")
)

// SetupError records which model reference failed to load and why.
type SetupError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SetupError) Error() string {
	return fmt.Sprintf("inference: setup failed for %q: %v", e.Ref, e.Err)
}

// Unwrap returns the underlying error.
func (e *SetupError) Unwrap() error {
	return e.Err
}

// Is reports ErrSetupFailed as a match so callers can use errors.Is.
func (e *SetupError) Is(target error) bool {
	return target == ErrSetupFailed
}
