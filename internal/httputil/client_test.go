package httputil

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(0)
	if client.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", client.Timeout)
	}
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("Transport = %T, want *http.Transport", client.Transport)
	}
	if transport.TLSClientConfig.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want TLS 1.2", transport.TLSClientConfig.MinVersion)
	}
	if transport == http.DefaultTransport {
		t.Error("expected a cloned transport")
	}
}

func TestReadAllWithLimit(t *testing.T) {
	data, truncated, err := ReadAllWithLimit(strings.NewReader("hello world"), 5)
	if err != nil {
		t.Fatalf("ReadAllWithLimit error: %v", err)
	}
	if !truncated || string(data) != "hello" {
		t.Fatalf("got %q truncated=%v, want %q truncated=true", data, truncated, "hello")
	}

	data, truncated, err = ReadAllWithLimit(strings.NewReader("hi"), 5)
	if err != nil || truncated || string(data) != "hi" {
		t.Fatalf("got %q truncated=%v err=%v", data, truncated, err)
	}
}

func TestReadAllStrict(t *testing.T) {
	if _, err := ReadAllStrict(strings.NewReader("too long"), 3); !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("err = %v, want ErrBodyTooLarge", err)
	}
	data, err := ReadAllStrict(strings.NewReader("ok"), 3)
	if err != nil || string(data) != "ok" {
		t.Fatalf("got %q err=%v", data, err)
	}
}

func TestWriteErrorResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)

	WriteErrorResponse(rr, req, http.StatusConflict, "OPERATION_PENDING", "busy", map[string]interface{}{"retry": true})

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusConflict)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q", ct)
	}
	var body ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "OPERATION_PENDING" || body.Error != "busy" {
		t.Fatalf("unexpected body: %+v", body)
	}
}
