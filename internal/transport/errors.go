package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is a non-2xx controller response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("controller returned %d: %s", e.StatusCode, e.Description())
}

// Description returns the controller's error description. The API wraps
// errors in a JSON object with a "description" field; when the body is empty
// or not that shape, the raw body is returned.
func (e *HTTPError) Description() string {
	var wire struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(e.Body), &wire); err == nil && wire.Description != "" {
		return wire.Description
	}
	return e.Body
}

// ErrorStatus returns the HTTP status code carried by err, or 0 when err is
// not an HTTPError.
func ErrorStatus(err error) int {
	var herr *HTTPError
	if errors.As(err, &herr) {
		return herr.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is an HTTP 404 response.
func IsNotFound(err error) bool {
	return ErrorStatus(err) == http.StatusNotFound
}
