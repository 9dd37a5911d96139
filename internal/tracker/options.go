package tracker

import (
	"time"

	"github.com/e7canasta/framesequence/internal/metrics"
)

const (
	// DefaultTimeDeltaToReport is how long a sequence runs before its metrics
	// are flushed and a fresh tracker takes over.
	DefaultTimeDeltaToReport = 5 * time.Second

	// DefaultTerminationGraceFrames bounds how many submissions a stopped
	// tracker may see past its anchor before it is force-terminated.
	DefaultTerminationGraceFrames = 3

	// DefaultTraceLimit is the number of recent events kept per tracker.
	DefaultTraceLimit = 64
)

// Options tunes trackers created by a Collection.
type Options struct {
	TimeDeltaToReport      time.Duration
	TerminationGraceFrames uint32
	MinFramesForReporting  uint64
	// SingleThreaded hosts have no compositor thread; no trackers are created.
	SingleThreaded bool
	TraceLimit     int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		TimeDeltaToReport:      DefaultTimeDeltaToReport,
		TerminationGraceFrames: DefaultTerminationGraceFrames,
		MinFramesForReporting:  metrics.MinFramesForThroughputMetric,
		TraceLimit:             DefaultTraceLimit,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TimeDeltaToReport <= 0 {
		o.TimeDeltaToReport = d.TimeDeltaToReport
	}
	if o.TerminationGraceFrames == 0 {
		o.TerminationGraceFrames = d.TerminationGraceFrames
	}
	if o.MinFramesForReporting == 0 {
		o.MinFramesForReporting = d.MinFramesForReporting
	}
	if o.TraceLimit <= 0 {
		o.TraceLimit = d.TraceLimit
	}
	return o
}
