package gmail

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
)

// ErrInvalidMessage marks caller mistakes detected before any API call.
var ErrInvalidMessage = errors.New("invalid request")

// StatusCode returns the HTTP status Gmail answered with, or 0 when err
// did not come from the API.
func StatusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}

// IsNotFound reports whether Gmail rejected the call because the resource
// does not exist.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}
