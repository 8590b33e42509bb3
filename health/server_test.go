package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
)

func get(t *testing.T, handler http.Handler, path string) (int, response) {
	t.Helper()
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body response
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	return w.Code, body
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("waiting for the first run", func(t *testing.T) {
		s := NewServer("127.0.0.1", 0)
		code, body := get(t, s.Handler(), "/health")
		if code != http.StatusNotFound {
			t.Errorf("code = %d; want 404", code)
		}
		if body.Message != "Waiting for the first run" {
			t.Errorf("message = %q", body.Message)
		}
	})

	t.Run("ok after a successful run", func(t *testing.T) {
		s := NewServer("127.0.0.1", 0)
		s.SetOK()
		code, body := get(t, s.Handler(), "/health")
		if code != http.StatusOK {
			t.Errorf("code = %d; want 200", code)
		}
		if body.Message != "Everything is working fine" {
			t.Errorf("message = %q", body.Message)
		}
	})

	t.Run("failed run reports the error", func(t *testing.T) {
		s := NewServer("127.0.0.1", 0)
		s.SetFailed(errors.New("no bluetooth adapters found"))
		code, body := get(t, s.Handler(), "/health")
		if code != http.StatusInternalServerError {
			t.Errorf("code = %d; want 500", code)
		}
		if body.Message != "no bluetooth adapters found" {
			t.Errorf("message = %q", body.Message)
		}
	})

	t.Run("recovers after a failure", func(t *testing.T) {
		s := NewServer("127.0.0.1", 0)
		s.SetFailed(errors.New("transient"))
		s.SetOK()
		code, _ := get(t, s.Handler(), "/health")
		if code != http.StatusOK {
			t.Errorf("code = %d; want 200", code)
		}
	})

	t.Run("unknown paths get a JSON 404", func(t *testing.T) {
		s := NewServer("127.0.0.1", 0)
		code, body := get(t, s.Handler(), "/nope")
		if code != http.StatusNotFound {
			t.Errorf("code = %d; want 404", code)
		}
		if body.Message != "Resource not found" {
			t.Errorf("message = %q", body.Message)
		}
	})

	t.Run("metrics are served", func(t *testing.T) {
		s := NewServer("127.0.0.1", 0)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if w.Code != http.StatusOK {
			t.Errorf("code = %d; want 200", w.Code)
		}
	})
}
