package repository

import (
	"errors"
	"fmt"

	"github.com/okian/echelon/internal/domain/model"
)

// Sentinel kinds for store errors. Both match the domain kinds via errors.Is.
var (
	ErrNotFound     = model.ErrNotFound
	ErrInvalidLimit = fmt.Errorf("%w: invalid limit", model.ErrValidation)
	ErrClosed       = errors.New("store closed")
)

func notFound(what, id string) error {
	return fmt.Errorf("%s %q: %w", what, id, ErrNotFound)
}
