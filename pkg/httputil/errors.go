package httputil

import (
	"fmt"
	"io"
	"net/http"
)

// Doer is the request surface platform clients depend on, satisfied by
// both *Session and *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

const maxErrorBody = 512

// StatusError reports a non-2xx platform response along with an excerpt
// of the body for diagnostics.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// CheckStatus returns a *StatusError when the response is not 2xx,
// consuming at most an excerpt of the body.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{StatusCode: resp.StatusCode, Body: body}
}
