package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/echelon/internal/domain/model"
	"github.com/okian/echelon/internal/identity"
)

// APIError is a non-2xx response. It unwraps to the matching domain
// sentinel so callers can use errors.Is(err, model.ErrNotFound).
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case "not_found":
		return model.ErrNotFound
	case "validation_failed", "bad_request":
		return model.ErrValidation
	case "unauthorized":
		return identity.ErrUnauthorized
	}
	return nil
}

func decodeAPIError(status int, body []byte) error {
	e := &APIError{Status: status}
	if err := json.Unmarshal(body, e); err != nil || e.Code == "" {
		e.Code = http.StatusText(status)
	}
	return e
}

// IsAPIError reports whether err came back from the server rather than
// from the transport.
func IsAPIError(err error) bool {
	var e *APIError
	return errors.As(err, &e)
}
