// Package result decodes responses from the yard application into either a
// JSON payload or a single tagged [Error].
//
// The yard endpoints report failures in several inconsistent shapes: HTTP
// error pages, {"success": false, "message": ...}, nested error objects and
// error strings that themselves contain JSON. Everything is unwrapped once
// here so the polling layer only ever sees a [Kind] and a message.
package result

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"
)

// Kind classifies where a request failed.
type Kind string

const (
	// KindTransport means no response was received (DNS, connect, timeout, abort).
	KindTransport Kind = "transport"

	// KindHTTP means the server answered with a non-2xx status.
	KindHTTP Kind = "http"

	// KindDecode means a 2xx body could not be parsed.
	KindDecode Kind = "decode"

	// KindApplication means the payload parsed but reported success=false.
	KindApplication Kind = "application"
)

// maxNestedDepth bounds speculative re-parsing of nested error payloads.
const maxNestedDepth = 4

// maxRawMessage truncates raw response text used as a fallback message.
const maxRawMessage = 512

// messageKeys are probed in order when looking for a human readable message.
var messageKeys = []string{"message", "msg", "mensaje", "error", "errors", "error_description", "detail", "data"}

// Error is the single error type produced at the network boundary.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout reports whether the request was cut short by its deadline.
func (e *Error) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Aborted reports whether the request was cancelled by its caller.
func (e *Error) Aborted() bool {
	return errors.Is(e.Err, context.Canceled)
}

// Counts reports whether the failure counts toward a consecutive-error
// threshold. Timeouts and aborts never do.
func (e *Error) Counts() bool {
	return !e.Timeout() && !e.Aborted()
}

// Counts reports whether err should count toward a consecutive-error
// threshold. Errors that are not an [*Error] always count, except bare
// context deadline and cancellation errors.
func Counts(err error) bool {
	if err == nil {
		return false
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Counts()
	}
	return !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled)
}

// Transport wraps a request error as a [KindTransport] error.
func Transport(err error) *Error {
	return &Error{Kind: KindTransport, Message: err.Error(), Err: err}
}

// CheckHTML validates a response carrying an HTML partial. Only transport
// and HTTP failures apply.
func CheckHTML(body []byte, statusCode int, transportErr error) error {
	if transportErr != nil {
		return Transport(transportErr)
	}
	if statusCode < 200 || statusCode >= 300 {
		return httpError(body, statusCode)
	}
	return nil
}

// Decode validates a JSON response and returns its payload.
//
// The checks run in order: transport error, non-2xx status, JSON syntax,
// then an application-level success flag. The returned error is always an
// [*Error] when non-nil.
func Decode(body []byte, statusCode int, transportErr error) (json.RawMessage, error) {
	if transportErr != nil {
		return nil, Transport(transportErr)
	}
	if statusCode < 200 || statusCode >= 300 {
		return nil, httpError(body, statusCode)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &Error{
			Kind:       KindDecode,
			Message:    fmt.Sprintf("invalid JSON: %v", err),
			StatusCode: statusCode,
			Err:        err,
		}
	}

	if obj, ok := payload.(map[string]any); ok && reportsFailure(obj) {
		msg := messageFrom(obj, 0, false)
		if msg == "" {
			msg = "request was not successful"
		}
		return nil, &Error{Kind: KindApplication, Message: msg, StatusCode: statusCode}
	}

	return json.RawMessage(body), nil
}

// Message extracts the most specific human readable message from a
// response body, falling back to the raw (trimmed, truncated) text.
func Message(body []byte) string {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return ""
	}

	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err == nil {
		if msg := messageFrom(payload, 0, false); msg != "" {
			return msg
		}
	}

	if len(raw) > maxRawMessage {
		cut := maxRawMessage
		for cut > 0 && !utf8.RuneStart(raw[cut]) {
			cut--
		}
		raw = raw[:cut] + "..."
	}
	return raw
}

func httpError(body []byte, statusCode int) *Error {
	msg := Message(body)
	if msg == "" || looksLikeHTML(msg) {
		msg = http.StatusText(statusCode)
	}
	return &Error{Kind: KindHTTP, Message: msg, StatusCode: statusCode}
}

// reportsFailure recognises the success flags used by the yard endpoints.
func reportsFailure(obj map[string]any) bool {
	if v, ok := obj["success"]; ok {
		switch t := v.(type) {
		case bool:
			return !t
		case string:
			return strings.EqualFold(t, "false") || t == "0"
		case float64:
			return t == 0
		}
	}
	if v, ok := obj["status"].(string); ok {
		return strings.EqualFold(v, "error")
	}
	return false
}

func messageFrom(v any, depth int, loose bool) string {
	if depth > maxNestedDepth {
		return ""
	}

	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") || strings.HasPrefix(s, `"`) {
			var inner any
			if err := json.Unmarshal([]byte(s), &inner); err == nil {
				if msg := messageFrom(inner, depth+1, loose); msg != "" {
					return msg
				}
			}
		}
		return s

	case []any:
		for _, elem := range t {
			if msg := messageFrom(elem, depth+1, loose); msg != "" {
				return msg
			}
		}

	case map[string]any:
		for _, key := range messageKeys {
			val, ok := t[key]
			if !ok {
				continue
			}
			if msg := messageFrom(val, depth+1, loose || key == "errors"); msg != "" {
				return msg
			}
		}
		// field-keyed validation errors: {"errors": {"plate": ["required"]}}
		if loose {
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if msg := messageFrom(t[k], depth+1, loose); msg != "" {
					return msg
				}
			}
		}
	}

	return ""
}

func looksLikeHTML(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html")
}
