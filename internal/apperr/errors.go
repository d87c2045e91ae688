// Package apperr defines the sentinel errors shared by every sway surface.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Command failures reported back to the caller of apply / remove / bake.
	ErrInsufficientPins    = errors.New("at least 2 pins are required")
	ErrNoSelection         = errors.New("nothing selected")
	ErrMissingRigStructure = errors.New("layer has no puppet rig")
	ErrInvalidParameters   = errors.New("invalid parameters")
	ErrBindingFailure      = errors.New("binding failed")
)
