package model

import "errors"

// Sentinel error kinds shared by every layer. Wrap with fmt.Errorf("...: %w")
// and match with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)
