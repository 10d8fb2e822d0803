package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrModelNotFound       = errors.New("model not found")
	ErrNoActiveModel       = errors.New("no active model")
	ErrModelIncomplete     = errors.New("active model is incomplete")
	ErrActivationRejected  = errors.New("model cannot be activated")
	ErrConflict            = errors.New("concurrent modification")
	ErrArtifactUnavailable = errors.New("model artifact unavailable")
	ErrTemporary           = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
