// Package alert delivers violation sets to operators. Sinks are fan-out
// targets behind core.AlertSink; a failing sink is logged and never blocks
// the detection loop or the other sinks.
package alert

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
	"github.com/hugo-lorenzo-mato/leakgate/internal/logging"
	"github.com/hugo-lorenzo-mato/leakgate/internal/report"
)

// LogSink writes every violation to the structured log.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a sink that logs each violation at a level matching
// its severity.
func NewLogSink(logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogSink{logger: logger.WithComponent("alert")}
}

// Publish logs the set, one entry per violation.
func (s *LogSink) Publish(_ context.Context, set core.ViolationSet) error {
	log := s.logger.With("run_id", set.RunID)
	for _, v := range set.Violations {
		args := []any{
			"kind", string(v.Kind),
			"resource_type", string(v.ResourceType),
			"handle_id", int64(v.HandleID),
			"owner", v.Owner,
			"detail", v.Detail,
		}
		switch v.Severity {
		case core.SeverityWarn:
			log.Warn("violation", args...)
		default:
			log.Error("violation", args...)
		}
	}
	for _, derr := range set.DetectorErrors {
		log.Error("detector failed", "detector", derr.Detector, "message", derr.Message)
	}
	return nil
}

// DefaultHTTPTimeout bounds a single webhook delivery.
const DefaultHTTPTimeout = 10 * time.Second

// HTTPSink POSTs the JSON report of each violating run to a webhook
// endpoint.
type HTTPSink struct {
	endpoint string
	client   *http.Client
	logger   *logging.Logger
}

// HTTPSinkOption configures an HTTPSink.
type HTTPSinkOption func(*HTTPSink)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) HTTPSinkOption {
	return func(s *HTTPSink) { s.client = c }
}

// WithHTTPLogger attaches a logger.
func WithHTTPLogger(l *logging.Logger) HTTPSinkOption {
	return func(s *HTTPSink) { s.logger = l.WithComponent("alert") }
}

// NewHTTPSink creates a webhook sink targeting endpoint.
func NewHTTPSink(endpoint string, opts ...HTTPSinkOption) *HTTPSink {
	s := &HTTPSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultHTTPTimeout},
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish posts the report. Non-2xx responses are errors.
func (s *HTTPSink) Publish(ctx context.Context, set core.ViolationSet) error {
	payload, err := report.Generate(set).JSON()
	if err != nil {
		return fmt.Errorf("encoding alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivering alert to %s: %w", s.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert endpoint %s returned %d", s.endpoint, resp.StatusCode)
	}
	s.logger.Debug("alert delivered", "endpoint", s.endpoint, "run_id", set.RunID)
	return nil
}
