// Package api implements the wire clients for the unit listing, file upload
// and completion webhook endpoints.
package api

import (
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
)

// maxErrorBody caps how much of a failed response is kept in StatusError.
const maxErrorBody = 4096

// StatusError is returned when an endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, body)
}

// newStatusError drains up to maxErrorBody bytes of resp.Body.
func newStatusError(resp *nethttp.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
}

// IsStatus reports whether err carries a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// ErrIncompleteResponse is returned when an upload response lacks name or webViewLink.
var ErrIncompleteResponse = errors.New("upload response missing name or webViewLink")

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
