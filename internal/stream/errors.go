package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/legaldb/caseanalyzer/internal/core"
)

// maxErrorBody caps how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// ErrorFromResponse builds a transport error for a non-2xx response. The
// message comes from a JSON detail or message field, else the raw body,
// else a generic request failure. The body is drained and closed.
func ErrorFromResponse(resp *http.Response) *core.DomainError {
	var raw []byte
	if resp.Body != nil {
		raw, _ = io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
	}
	return core.ErrTransport(core.CodeHTTPStatus, MessageFromBody(resp.StatusCode, raw)).
		WithDetail("status", resp.StatusCode)
}

// MessageFromBody extracts a human-readable message from an error body.
func MessageFromBody(status int, raw []byte) string {
	var body struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if s := detailText(body.Detail); s != "" {
			return s
		}
		if s := strings.TrimSpace(body.Message); s != "" {
			return s
		}
	}
	if s := strings.TrimSpace(string(raw)); s != "" {
		return s
	}
	return fmt.Sprintf("request failed (HTTP %d)", status)
}

// detailText accepts the string form and the list-of-objects form of
// validation details.
func detailText(v any) string {
	switch d := v.(type) {
	case string:
		return strings.TrimSpace(d)
	case []any:
		parts := make([]string, 0, len(d))
		for _, item := range d {
			if m, ok := item.(map[string]any); ok {
				if msg, ok := m["msg"].(string); ok && msg != "" {
					parts = append(parts, msg)
				}
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}
