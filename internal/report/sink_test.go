package report

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/e7canasta/framesequence/internal/metrics"
)

func TestTeeForwardsToEverySink(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	tee := Tee{a, b}

	tee.ReportPercentDroppedFrames(metrics.ThreadMain, metrics.RAF, 10)
	tee.ReportFrameSequenceLength(metrics.RAF, 100)
	tee.ReportCheckerboarding(metrics.PinchZoom, 1, 1)
	tee.ReportCustomResults(map[int]metrics.ThroughputData{7: {Expected: 2, Produced: 1}})

	for i, r := range []*Recorder{a, b} {
		if got := r.TotalCount(metrics.ThroughputHistogramName(metrics.RAF, metrics.ThreadMain)); got != 1 {
			t.Errorf("sink %d: expected 1 throughput sample, got %d", i, got)
		}
		if got := r.TotalCount(metrics.FrameSequenceLengthHistogramName(metrics.RAF)); got != 1 {
			t.Errorf("sink %d: expected 1 length sample, got %d", i, got)
		}
		if got := r.TotalCount(metrics.CheckerboardingHistogramName(metrics.PinchZoom)); got != 1 {
			t.Errorf("sink %d: expected 1 checkerboarding sample, got %d", i, got)
		}
		if got := r.CustomResults()[7]; got.Expected != 2 || got.Produced != 1 {
			t.Errorf("sink %d: unexpected custom result %+v", i, got)
		}
	}
}

func TestLogWritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	l := NewLog(logger, slog.LevelInfo)

	l.ReportPercentDroppedFrames(metrics.ThreadCompositor, metrics.WheelScroll, 12)
	l.ReportCustomResults(map[int]metrics.ThroughputData{3: {Expected: 9, Produced: 6}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 records, got %d: %s", len(lines), buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("invalid JSON record: %v", err)
	}
	if rec["histogram"] != "Graphics.Smoothness.PercentDroppedFrames.CompositorThread.WheelScroll" {
		t.Errorf("unexpected histogram %v", rec["histogram"])
	}
	if rec["percent_dropped"] != float64(12) {
		t.Errorf("Expected percent_dropped 12, got %v", rec["percent_dropped"])
	}

	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("invalid JSON record: %v", err)
	}
	if rec["id"] != float64(3) || rec["frames_produced"] != float64(6) {
		t.Errorf("unexpected custom record %v", rec)
	}
}

func TestLogRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	l := NewLog(logger, slog.LevelDebug)

	l.ReportFrameSequenceLength(metrics.Video, 300)

	if buf.Len() != 0 {
		t.Errorf("Expected debug record to be filtered, got %q", buf.String())
	}
}
