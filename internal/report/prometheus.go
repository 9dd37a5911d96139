package report

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/e7canasta/framesequence/internal/metrics"
)

// Prometheus exports samples as histograms.
type Prometheus struct {
	percentDropped   *prometheus.HistogramVec
	sequenceLength   *prometheus.HistogramVec
	checkerboarded   *prometheus.HistogramVec
	customFrames     *prometheus.CounterVec
	customSequences  prometheus.Counter
	customPercentage *prometheus.HistogramVec
}

var percentBuckets = prometheus.LinearBuckets(0, 5, 21)

// NewPrometheus registers the collectors with reg. A nil reg uses the
// default registerer.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Prometheus{
		percentDropped: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "framesequence_percent_dropped_frames",
			Help:    "Percent of expected frames not produced per sequence",
			Buckets: percentBuckets,
		}, []string{"thread", "sequence"}),

		sequenceLength: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "framesequence_sequence_length_frames",
			Help:    "Frames expected on the effective thread per reported sequence",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10),
		}, []string{"sequence"}),

		checkerboarded: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "framesequence_checkerboarded_percent",
			Help:    "Percent of expected compositor frames shown with missing content",
			Buckets: percentBuckets,
		}, []string{"sequence"}),

		customFrames: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "framesequence_custom_frames_total",
			Help: "Frames counted by custom sequences",
		}, []string{"kind"}),

		customSequences: factory.NewCounter(prometheus.CounterOpts{
			Name: "framesequence_custom_sequences_total",
			Help: "Custom sequences that reported results",
		}),

		customPercentage: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "framesequence_custom_percent_dropped_frames",
			Help:    "Percent of expected frames not produced per custom sequence",
			Buckets: percentBuckets,
		}, []string{"id"}),
	}
}

func (p *Prometheus) ReportPercentDroppedFrames(thread metrics.ThreadType, t metrics.TrackerType, percent int) {
	p.percentDropped.WithLabelValues(thread.String(), t.String()).Observe(float64(percent))
}

func (p *Prometheus) ReportFrameSequenceLength(t metrics.TrackerType, framesExpected uint64) {
	p.sequenceLength.WithLabelValues(t.String()).Observe(float64(framesExpected))
}

func (p *Prometheus) ReportCheckerboarding(t metrics.TrackerType, frames uint32, percent int) {
	p.checkerboarded.WithLabelValues(t.String()).Observe(float64(percent))
}

func (p *Prometheus) ReportCustomResults(results map[int]metrics.ThroughputData) {
	for id, data := range results {
		p.customSequences.Inc()
		p.customFrames.WithLabelValues("expected").Add(float64(data.Expected))
		p.customFrames.WithLabelValues("produced").Add(float64(data.Produced))
		if data.Expected > 0 {
			p.customPercentage.WithLabelValues(strconv.Itoa(id)).Observe(float64(data.DroppedFramePercent()))
		}
	}
}
