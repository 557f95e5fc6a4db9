package ebay

import (
	"errors"
	"fmt"
	"strings"

	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

var (
	// ErrNoRefreshToken is returned when a refresh is needed but the store
	// holds no refresh token. It signals a caller bug, not a provider
	// rejection.
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrUnsupportedImage is returned for image files the marketplace does
	// not accept.
	ErrUnsupportedImage = errors.New("unsupported image type")
)

// AuthError reports a token exchange or refresh that failed, including
// provider rejections and missing credentials.
type AuthError struct {
	Op         string
	StatusCode int
	// Body is the raw provider error body, if any.
	Body string
	Err  error
}

func (e *AuthError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "auth %s failed", e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AuthError) Unwrap() error { return e.Err }

// NeedsReconnect reports whether err means the seller must grant consent
// again: the refresh token is missing or eBay rejected the grant.
func NeedsReconnect(err error) bool {
	if errors.Is(err, ErrNoRefreshToken) {
		return true
	}
	var ae *AuthError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.StatusCode == 400 || ae.StatusCode == 401
}

// TransportError reports a network failure, timeout, or non-2xx response
// without a usable body.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, truncateBody(e.Body))
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a response body that is not well-formed where a
// document was expected.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// APIError reports a well-formed response whose acknowledgement is a
// failure. Errors carries every error node the provider returned.
type APIError struct {
	Call   string
	Ack    string
	Errors []domain.ProtocolErrorDetail
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed (ack %s): %s", e.Call, e.Ack, joinErrorDetails(e.Errors))
}

// ValidationError reports a request missing fields this layer requires.
type ValidationError struct {
	Fields []string
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid request: %v", e.Err)
	}
	return "invalid request: " + strings.Join(e.Fields, "; ")
}

func (e *ValidationError) Unwrap() error { return e.Err }

const unknownErrorMessage = "unknown error"

// joinErrorDetails collapses error nodes into one readable message.
func joinErrorDetails(details []domain.ProtocolErrorDetail) string {
	if len(details) == 0 {
		return unknownErrorMessage
	}
	parts := make([]string, 0, len(details))
	for _, d := range details {
		msg := d.Message()
		if d.Code != "" {
			msg = "[" + d.Code + "] " + msg
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, "; ")
}

func truncateBody(s string) string {
	const maxLen = 512
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
