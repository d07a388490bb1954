package flow

import (
	"errors"
	"fmt"
)

var ErrInvalidDefinition = errors.New("invalid flow definition")

// DefinitionError matches ErrInvalidDefinition and unwraps to the
// underlying condition or jober error, if any.
type DefinitionError struct {
	DefinitionId string
	Reason       string
	Cause        error
}

func (e *DefinitionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %s: %v", ErrInvalidDefinition, e.DefinitionId, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s %s: %s", ErrInvalidDefinition, e.DefinitionId, e.Reason)
}

func (e *DefinitionError) Unwrap() error {
	return e.Cause
}

func (e *DefinitionError) Is(target error) bool {
	return target == ErrInvalidDefinition
}

func invalid(defId string, cause error, format string, args ...any) error {
	return &DefinitionError{DefinitionId: defId, Reason: fmt.Sprintf(format, args...), Cause: cause}
}
