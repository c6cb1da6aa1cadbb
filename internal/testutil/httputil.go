package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// JSONRequest builds an httptest request carrying body as JSON.
func JSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to encode request body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DecodeJSON decodes the recorded response body into v.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v (body: %s)", err, rec.Body.String())
	}
}

// Event is one parsed server-sent event.
type Event struct {
	Name string
	Data string
}

// Decode unmarshals the event's JSON data into v.
func (e Event) Decode(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(e.Data), v); err != nil {
		t.Fatalf("failed to decode %q event data: %v (data: %s)", e.Name, err, e.Data)
	}
}

// ParseSSE splits a recorded event-stream response into its events.
func ParseSSE(t *testing.T, rec *httptest.ResponseRecorder) []Event {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("not an event stream: Content-Type %q (body: %s)", ct, rec.Body.String())
	}

	var events []Event
	for _, block := range strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n") {
		var ev Event
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.Name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.Data = strings.TrimPrefix(line, "data: ")
			}
		}
		if ev.Name != "" {
			events = append(events, ev)
		}
	}
	return events
}
