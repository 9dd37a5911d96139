// Package report holds the destinations for finalized frame sequence samples:
// an in-memory recorder, structured logs, Prometheus histograms and an MQTT
// publisher.
package report

import "github.com/e7canasta/framesequence/internal/metrics"

// CustomReporter receives custom sequence results keyed by sequence id.
type CustomReporter interface {
	ReportCustomResults(results map[int]metrics.ThroughputData)
}

// Sink is a reporter that also accepts custom sequence results.
type Sink interface {
	metrics.Reporter
	CustomReporter
}

// Tee forwards every sample to each of its sinks, in order.
type Tee []Sink

func (t Tee) ReportPercentDroppedFrames(thread metrics.ThreadType, typ metrics.TrackerType, percent int) {
	for _, s := range t {
		s.ReportPercentDroppedFrames(thread, typ, percent)
	}
}

func (t Tee) ReportFrameSequenceLength(typ metrics.TrackerType, framesExpected uint64) {
	for _, s := range t {
		s.ReportFrameSequenceLength(typ, framesExpected)
	}
}

func (t Tee) ReportCheckerboarding(typ metrics.TrackerType, frames uint32, percent int) {
	for _, s := range t {
		s.ReportCheckerboarding(typ, frames, percent)
	}
}

func (t Tee) ReportCustomResults(results map[int]metrics.ThroughputData) {
	for _, s := range t {
		s.ReportCustomResults(results)
	}
}
