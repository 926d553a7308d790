package events

import (
	"time"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
)

// Event type constants for the detection pipeline.
const (
	TypeTickCompleted      = "tick_completed"
	TypeTickSkipped        = "tick_skipped"
	TypeViolationsDetected = "violations_detected"
	TypeDetectorFailed     = "detector_failed"
)

// TickCompletedEvent is emitted after every finished watchdog tick,
// violations or not.
type TickCompletedEvent struct {
	BaseEvent
	Violations     int           `json:"violations"`
	DetectorErrors int           `json:"detector_errors"`
	Duration       time.Duration `json:"duration"`
}

// NewTickCompletedEvent creates a tick completion event.
func NewTickCompletedEvent(runID string, violations, detectorErrors int, duration time.Duration) TickCompletedEvent {
	return TickCompletedEvent{
		BaseEvent:      NewBaseEvent(TypeTickCompleted, runID),
		Violations:     violations,
		DetectorErrors: detectorErrors,
		Duration:       duration,
	}
}

// TickSkippedEvent is emitted when a scheduled tick is skipped because
// the previous one is still running.
type TickSkippedEvent struct {
	BaseEvent
	InFlightRun string `json:"in_flight_run"`
}

// NewTickSkippedEvent creates a tick skip event.
func NewTickSkippedEvent(inFlightRun string) TickSkippedEvent {
	return TickSkippedEvent{
		BaseEvent:   NewBaseEvent(TypeTickSkipped, inFlightRun),
		InFlightRun: inFlightRun,
	}
}

// ViolationsDetectedEvent carries a non-empty violation set. Published on
// the priority path so alert sinks never miss one.
type ViolationsDetectedEvent struct {
	BaseEvent
	Set core.ViolationSet `json:"set"`
}

// NewViolationsDetectedEvent creates a violations event.
func NewViolationsDetectedEvent(set core.ViolationSet) ViolationsDetectedEvent {
	return ViolationsDetectedEvent{
		BaseEvent: NewBaseEvent(TypeViolationsDetected, set.RunID),
		Set:       set,
	}
}

// DetectorFailedEvent reports an isolated detector failure.
type DetectorFailedEvent struct {
	BaseEvent
	Detector string `json:"detector"`
	Message  string `json:"message"`
}

// NewDetectorFailedEvent creates a detector failure event.
func NewDetectorFailedEvent(runID string, derr core.DetectorError) DetectorFailedEvent {
	return DetectorFailedEvent{
		BaseEvent: NewBaseEvent(TypeDetectorFailed, runID),
		Detector:  derr.Detector,
		Message:   derr.Message,
	}
}
