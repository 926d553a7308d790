package report

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
	"github.com/hugo-lorenzo-mato/leakgate/internal/testutil"
)

func sampleSet() core.ViolationSet {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return core.ViolationSet{
		RunID:      "run-42",
		StartedAt:  base,
		FinishedAt: base.Add(time.Second),
		Violations: []core.Violation{
			{HandleID: 9, ResourceType: core.ResourceFile, Kind: core.ViolationAgeExceeded, Severity: core.SeverityWarn, DetectedAt: base},
			{HandleID: 3, ResourceType: core.ResourceThread, Kind: core.ViolationCountExceeded, Severity: core.SeverityFatal, DetectedAt: base.Add(time.Millisecond)},
			{HandleID: 1, ResourceType: core.ResourceThread, Kind: core.ViolationAgeExceeded, Severity: core.SeverityError, DetectedAt: base},
			{HandleID: 2, ResourceType: core.ResourceSocket, Kind: core.ViolationOrphaned, Severity: core.SeverityError, DetectedAt: base},
		},
		DetectorErrors: []core.DetectorError{
			{Detector: "orphan", Message: "registry unavailable", OccurredAt: base},
			{Detector: "age", Message: "boom", OccurredAt: base},
		},
	}
}

func TestGenerate_Ordering(t *testing.T) {
	r := Generate(sampleSet())

	require.Len(t, r.Violations, 4)
	// Severity desc: fatal, then the two errors by detected_at/handle id,
	// then warn.
	assert.Equal(t, core.HandleID(3), r.Violations[0].HandleID)
	assert.Equal(t, core.HandleID(1), r.Violations[1].HandleID)
	assert.Equal(t, core.HandleID(2), r.Violations[2].HandleID)
	assert.Equal(t, core.HandleID(9), r.Violations[3].HandleID)

	// Detector errors sorted by detector name.
	require.Len(t, r.DetectorErrors, 2)
	assert.Equal(t, "age", r.DetectorErrors[0].Detector)
	assert.Equal(t, "orphan", r.DetectorErrors[1].Detector)

	assert.Equal(t, 4, r.Summary.Total)
	assert.Equal(t, 2, r.Summary.BySeverity[core.SeverityError])
	assert.Equal(t, 2, r.Summary.ByKind[core.ViolationAgeExceeded])
	assert.Equal(t, 2, r.Summary.DetectorErrors)
}

func TestGenerate_PureAndIdempotent(t *testing.T) {
	set := sampleSet()
	first := Generate(set)
	second := Generate(set)

	j1, err := first.JSON()
	require.NoError(t, err)
	j2, err := second.JSON()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(j1, j2), "expected byte-identical renders")

	// Input order untouched.
	assert.Equal(t, core.HandleID(9), set.Violations[0].HandleID)
}

func TestGenerate_EmptySet(t *testing.T) {
	r := Generate(core.ViolationSet{RunID: "run-0"})
	assert.True(t, r.Empty())
	assert.Equal(t, 0, r.Summary.Total)
	assert.Nil(t, r.Summary.BySeverity)
	assert.Contains(t, r.Text(), "No violations detected")
}

func TestText_DerivedFromStructured(t *testing.T) {
	r := Generate(sampleSet())
	text := r.Text()

	assert.Contains(t, text, "run-42")
	assert.Contains(t, text, "4 violation(s)")
	assert.Contains(t, text, "1 fatal, 2 error, 1 warn")
	assert.Contains(t, text, "Detector errors:")

	// Text order follows structured order.
	fatalIdx := strings.Index(text, "[FATAL]")
	warnIdx := strings.Index(text, "[WARN]")
	require.GreaterOrEqual(t, fatalIdx, 0)
	require.GreaterOrEqual(t, warnIdx, 0)
	assert.Less(t, fatalIdx, warnIdx)

	// Identical calls render identically.
	assert.Equal(t, text, r.Text())
}

func TestText_Golden(t *testing.T) {
	g := testutil.NewGolden(t, "testdata")
	g.AssertString("report_text", Generate(sampleSet()).Text())
}

func TestWriter_RoundTrip(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "last_report.json"))
	assert.False(t, w.Exists())

	r := Generate(sampleSet())
	require.NoError(t, w.Write(r))
	assert.True(t, w.Exists())

	loaded, err := w.Load()
	require.NoError(t, err)
	assert.Equal(t, r.RunID, loaded.RunID)
	require.Len(t, loaded.Violations, 4)
	assert.Equal(t, r.Violations[0].HandleID, loaded.Violations[0].HandleID)

	// Rewrite replaces atomically.
	require.NoError(t, w.Write(Generate(core.ViolationSet{RunID: "run-next"})))
	loaded, err = w.Load()
	require.NoError(t, err)
	assert.Equal(t, "run-next", loaded.RunID)
}

func TestWriter_LoadMissing(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "missing.json"))
	_, err := w.Load()
	assert.Error(t, err)
}
