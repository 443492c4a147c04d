package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrUnauthorized is returned for every 401 from the closures API.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx answer other than 401.
type APIError struct {
	StatusCode int
	Message    string
	// Fields holds per-field validation messages when the API sent them.
	Fields map[string]string
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("closures api returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the closures API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// newAPIError extracts a readable message from the usual REST error bodies:
// {"detail": ...}, {"error": ...}, {"non_field_errors": [...]} or {"field": ["msg"]}.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: body}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		apiErr.Message = fallbackMessage(status, body)
		return apiErr
	}

	for _, key := range []string{"detail", "error", "non_field_errors"} {
		if raw, ok := payload[key]; ok {
			if msg := firstMessage(raw); msg != "" {
				apiErr.Message = msg
				return apiErr
			}
		}
	}

	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		msg := firstMessage(payload[key])
		if msg == "" {
			continue
		}
		if apiErr.Fields == nil {
			apiErr.Fields = make(map[string]string)
			apiErr.Message = fmt.Sprintf("%s: %s", key, msg)
		}
		apiErr.Fields[key] = msg
	}
	if len(apiErr.Fields) > 0 {
		return apiErr
	}

	apiErr.Message = fallbackMessage(status, body)
	return apiErr
}

func firstMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}

func fallbackMessage(status int, body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" || strings.HasPrefix(text, "<") {
		return http.StatusText(status)
	}
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}
