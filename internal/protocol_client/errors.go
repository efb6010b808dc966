package protocol_client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// Request errors
	ErrInvalidPath = errors.New("invalid remote path")
	ErrTransport   = errors.New("transport failure")

	// Response errors
	ErrProtocol          = errors.New("gateway rejected request")
	ErrNotFound          = errors.New("remote path not found")
	ErrMalformedResponse = errors.New("malformed gateway response")
)

// RemoteError is a non-2xx gateway response, decoded from its RemoteException
// body when one is present.
type RemoteError struct {
	Op            string
	Path          string
	StatusCode    int
	Exception     string
	JavaClassName string
	Message       string
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %q failed: HTTP %d", e.Op, e.Path, e.StatusCode)
	if e.Exception != "" {
		b.WriteString(" ")
		b.WriteString(e.Exception)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *RemoteError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound ||
		e.Exception == "FileNotFoundException" ||
		strings.HasSuffix(e.JavaClassName, ".FileNotFoundException")
}

// Retryable reports whether the gateway asked us to back off or failed internally.
func (e *RemoteError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func (e *RemoteError) Unwrap() []error {
	if e.IsNotFound() {
		return []error{ErrProtocol, ErrNotFound}
	}
	return []error{ErrProtocol}
}

func TransportError(op, path string, err error) error {
	return fmt.Errorf("%s %q failed: %w: %w", op, path, ErrTransport, err)
}

func MalformedResponseError(op, path string, err error) error {
	return fmt.Errorf("%s %q failed: %w: %w", op, path, ErrMalformedResponse, err)
}
