package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
	"github.com/hugo-lorenzo-mato/leakgate/internal/logging"
	"github.com/hugo-lorenzo-mato/leakgate/internal/report"
)

func sampleSet() core.ViolationSet {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return core.ViolationSet{
		RunID:      "run-1",
		StartedAt:  now,
		FinishedAt: now.Add(50 * time.Millisecond),
		Violations: []core.Violation{{
			HandleID:     7,
			ResourceType: core.ResourceFile,
			Owner:        "indexer",
			Kind:         core.ViolationAgeExceeded,
			Severity:     core.SeverityError,
			DetectedAt:   now,
			Detail:       "open for 11m0s, limit 10m0s",
		}},
	}
}

func TestLogSink_Publish(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: "debug", Format: "json", Output: &buf})
	sink := NewLogSink(logger)

	if err := sink.Publish(context.Background(), sampleSet()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"kind":"age_exceeded"`) {
		t.Fatalf("log output missing violation kind: %s", out)
	}
	if !strings.Contains(out, `"run_id":"run-1"`) {
		t.Fatalf("log output missing run id: %s", out)
	}
	if !strings.Contains(out, `"level":"ERROR"`) {
		t.Fatalf("error severity should log at ERROR: %s", out)
	}
}

func TestHTTPSink_Publish(t *testing.T) {
	var received report.Report
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, WithHTTPClient(srv.Client()))
	if err := sink.Publish(context.Background(), sampleSet()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if received.RunID != "run-1" {
		t.Fatalf("delivered run id = %q, want run-1", received.RunID)
	}
	if received.Summary.Total != 1 {
		t.Fatalf("delivered total = %d, want 1", received.Summary.Total)
	}
}

func TestHTTPSink_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, WithHTTPClient(srv.Client()))
	err := sink.Publish(context.Background(), sampleSet())
	if err == nil {
		t.Fatal("expected error on 503 response")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Fatalf("error should carry the status code: %v", err)
	}
}
