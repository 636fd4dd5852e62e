package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a deal id is not present in the store.
	ErrNotFound = errors.New("deal not found")
	// ErrInvalidStage is returned when a stage id is not registered.
	ErrInvalidStage = errors.New("invalid stage")
)

// NotFoundError carries the id that could not be resolved.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("deal %q not found", e.ID) }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidStageError carries the rejected stage id.
type InvalidStageError struct {
	Stage StageID
}

func (e *InvalidStageError) Error() string { return fmt.Sprintf("stage %q is not registered", e.Stage) }

func (e *InvalidStageError) Unwrap() error { return ErrInvalidStage }
