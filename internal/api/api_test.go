package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sporenet/sporenet/pkg/config"
	"github.com/sporenet/sporenet/pkg/sporenet"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Data.Dir = t.TempDir()
	cfg.Ollama.Enabled = false
	cfg.RateLimit.Enabled = false

	eng, err := sporenet.Open(cfg)
	if err != nil {
		t.Fatalf("sporenet.Open: %v", err)
	}
	t.Cleanup(func() { eng.Close() })

	return NewServer(eng, cfg)
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Success {
		t.Errorf("expected success=true, got %+v", resp)
	}
}

func TestRememberAndRecallRoundTrip(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/memory/remember", rememberRequest{
		Content: "User likes cold brew coffee",
		Source:  "chat",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 from remember, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/memory/recall?q=coffee", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from recall, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success=true from recall, got %+v", resp)
	}
}

func TestForgetUnknownBeliefReturnsNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodDelete, "/api/v1/memory/beliefs/doesnotexist", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown belief, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestJobsLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/jobs", upsertJobRequest{
		ID: "job-1", Kind: "reindex", Status: "pending",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 from job upsert, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/jobs/job-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from job get, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodPatch, "/api/v1/jobs/job-1", updateJobStatusRequest{Status: "completed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from status update, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/jobs/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing job, got %d", rec.Code)
	}
}

func TestAPIKeyAuthRejectsMissingKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Data.Dir = t.TempDir()
	cfg.Ollama.Enabled = false
	cfg.RateLimit.Enabled = false
	cfg.RestAPI.APIKey = "secret-key"

	eng, err := sporenet.Open(cfg)
	if err != nil {
		t.Fatalf("sporenet.Open: %v", err)
	}
	t.Cleanup(func() { eng.Close() })

	s := NewServer(eng, cfg)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/memory/stats", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without an api key, got %d: %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/memory/stats", nil)
	req.Header.Set("X-API-Key", "secret-key")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with a valid api key, got %d: %s", rec.Code, rec.Body.String())
	}
}
