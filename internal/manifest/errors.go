package manifest

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoToken is returned by calls that need a bearer token when none is held.
var ErrNoToken = errors.New("manifest: not authenticated")

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("manifest %s: status %d: %s", e.Operation, e.StatusCode, e.Message)
}

// ServerMessage returns the message sent by the backend.
func (e *APIError) ServerMessage() string {
	return e.Message
}

// IsUnauthorized reports whether err is a 401 or 403 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

// newAPIError extracts the human readable message from an error body. The
// backend sends {"message": "..."} or, for validation failures, an array of
// strings or of {"property", "constraints": {...}} objects.
func newAPIError(operation string, status int, body []byte, truncated bool) *APIError {
	msg := messageFromBody(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	if truncated {
		msg += "...(truncated)"
	}
	return &APIError{Operation: operation, StatusCode: status, Message: msg}
}

func messageFromBody(body []byte) string {
	if !gjson.ValidBytes(body) {
		return strings.TrimSpace(string(body))
	}

	result := gjson.GetBytes(body, "message")
	if !result.Exists() {
		result = gjson.GetBytes(body, "error")
	}
	if !result.Exists() {
		return ""
	}
	if !result.IsArray() {
		return strings.TrimSpace(result.String())
	}

	var parts []string
	for _, item := range result.Array() {
		if item.IsObject() {
			item.Get("constraints").ForEach(func(_, v gjson.Result) bool {
				parts = append(parts, v.String())
				return true
			})
			continue
		}
		if s := strings.TrimSpace(item.String()); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "; ")
}
