package api

import (
	"errors"
	"net/http"

	"github.com/okian/echelon/internal/domain/model"
	"github.com/okian/echelon/internal/identity"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = identity.ErrUnauthorized
)

// Kind tags an error with the operation that produced it and the class
// used to pick the response status.
type Kind struct {
	Op   string
	Kind error
	Err  error
}

func (k *Kind) Error() string {
	msg := k.Op
	if k.Kind != nil {
		msg += ": " + k.Kind.Error()
	}
	if k.Err != nil {
		msg += ": " + k.Err.Error()
	}
	return msg
}

func (k *Kind) Unwrap() []error {
	out := make([]error, 0, 2)
	if k.Kind != nil {
		out = append(out, k.Kind)
	}
	if k.Err != nil {
		out = append(out, k.Err)
	}
	return out
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &Kind{Op: op, Kind: kind}
}

// WrapKind tags err with kind and op.
func WrapKind(op string, kind, err error) error {
	return &Kind{Op: op, Kind: kind, Err: err}
}

// Wrap tags err with op, leaving its kind to whatever it already wraps.
func Wrap(op string, err error) error {
	return &Kind{Op: op, Err: err}
}

// classify maps an error to its HTTP status and response code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
