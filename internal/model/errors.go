package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an element is not found, locally or on the
	// controller.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when an element with the same ID already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a value or operation is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrTimeout is returned when a convergence wait exhausts its retries.
	ErrTimeout = errors.New("timed out")
	// ErrStale is returned on access through a reference whose element is gone
	// from the controller. It matches ErrNotFound too, staleness is a refinement
	// of it.
	ErrStale = fmt.Errorf("stale reference: %w", ErrNotFound)
	// ErrDesynchronized is returned when the event stream dropped and the local
	// mirror can no longer be trusted without a fresh sync.
	ErrDesynchronized = errors.New("desynchronized from controller")
)
