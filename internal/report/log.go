package report

import (
	"context"
	"log/slog"

	"github.com/e7canasta/framesequence/internal/metrics"
)

// Log writes one structured record per sample.
type Log struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLog logs through logger, or slog.Default when nil.
func NewLog(logger *slog.Logger, level slog.Level) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger, level: level}
}

func (l *Log) ReportPercentDroppedFrames(thread metrics.ThreadType, t metrics.TrackerType, percent int) {
	l.logger.Log(context.Background(), l.level, "frame sequence throughput",
		"histogram", metrics.ThroughputHistogramName(t, thread),
		"type", t.String(),
		"thread", thread.String(),
		"percent_dropped", percent)
}

func (l *Log) ReportFrameSequenceLength(t metrics.TrackerType, framesExpected uint64) {
	l.logger.Log(context.Background(), l.level, "frame sequence length",
		"histogram", metrics.FrameSequenceLengthHistogramName(t),
		"type", t.String(),
		"frames_expected", framesExpected)
}

func (l *Log) ReportCheckerboarding(t metrics.TrackerType, frames uint32, percent int) {
	l.logger.Log(context.Background(), l.level, "frame sequence checkerboarding",
		"histogram", metrics.CheckerboardingHistogramName(t),
		"type", t.String(),
		"frames_checkerboarded", frames,
		"percent", percent)
}

func (l *Log) ReportCustomResults(results map[int]metrics.ThroughputData) {
	for id, data := range results {
		l.logger.Log(context.Background(), l.level, "custom frame sequence",
			"id", id,
			"frames_expected", data.Expected,
			"frames_produced", data.Produced)
	}
}
