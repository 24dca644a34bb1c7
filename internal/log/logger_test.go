package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) err = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLogger_TagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentLedger, Output: &buf})
	l.Info("scan recorded", FieldTeamID, "001")
	l.WithComponent(ComponentAMQP).Debug("published")

	out := buf.String()
	if !strings.Contains(out, "component=ledger") || !strings.Contains(out, "team_id=001") {
		t.Errorf("missing attributes in %q", out)
	}
	if !strings.Contains(out, "component=amqp") {
		t.Errorf("WithComponent not applied: %q", out)
	}
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})

	var seen *Logger
	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusConflict)
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/scans", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if seen == nil || seen.Component() != logger.Component() {
		t.Error("handler did not receive the request logger")
	}
	id := rr.Header().Get(RequestIDHeader)
	if !strings.HasPrefix(id, "req_") {
		t.Errorf("request id = %q", id)
	}
	out := buf.String()
	for _, want := range []string{"level=WARN", "status_code=409", "request_id=" + id, "success=false"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %q", out, want)
		}
	}
}

func TestMiddleware_PropagatesRequestID(t *testing.T) {
	var buf bytes.Buffer
	h := Middleware(New(Config{Output: &buf}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside handler")
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/scores", nil)
	req.Header.Set(RequestIDHeader, "upstream-42")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get(RequestIDHeader); got != "upstream-42" {
		t.Errorf("response request id = %q", got)
	}
	if n := strings.Count(buf.String(), "request_id=upstream-42"); n != 2 {
		t.Errorf("request id logged %d times, want 2:\n%s", n, buf.String())
	}
}

func TestFromContext_Default(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Errorf("FromContext = %+v", l)
	}
}
