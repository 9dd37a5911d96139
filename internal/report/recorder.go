package report

import (
	"sort"
	"sync"

	"github.com/e7canasta/framesequence/internal/metrics"
)

// Bucket is one histogram value and how often it was recorded.
type Bucket struct {
	Value int64 `json:"value"`
	Count int   `json:"count"`
}

// Recorder keeps every sample in memory, keyed by histogram name.
type Recorder struct {
	mu         sync.Mutex
	histograms map[string]map[int64]int
	custom     map[int]metrics.ThroughputData
}

func NewRecorder() *Recorder {
	return &Recorder{
		histograms: make(map[string]map[int64]int),
		custom:     make(map[int]metrics.ThroughputData),
	}
}

func (r *Recorder) ReportPercentDroppedFrames(thread metrics.ThreadType, t metrics.TrackerType, percent int) {
	r.add(metrics.ThroughputHistogramName(t, thread), int64(percent))
}

func (r *Recorder) ReportFrameSequenceLength(t metrics.TrackerType, framesExpected uint64) {
	r.add(metrics.FrameSequenceLengthHistogramName(t), int64(framesExpected))
}

func (r *Recorder) ReportCheckerboarding(t metrics.TrackerType, frames uint32, percent int) {
	r.add(metrics.CheckerboardingHistogramName(t), int64(percent))
}

// ReportCustomResults stores custom sequence results, replacing older results
// of the same id.
func (r *Recorder) ReportCustomResults(results map[int]metrics.ThroughputData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, data := range results {
		r.custom[id] = data
	}
}

func (r *Recorder) add(name string, value int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.histograms[name]
	if !ok {
		h = make(map[int64]int)
		r.histograms[name] = h
	}
	h[value]++
}

// TotalCount is the number of samples recorded in a histogram.
func (r *Recorder) TotalCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.histograms[name] {
		total += n
	}
	return total
}

// BucketCount is how often value was recorded in a histogram.
func (r *Recorder) BucketCount(name string, value int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.histograms[name][value]
}

// Samples returns a histogram's buckets in ascending value order.
func (r *Recorder) Samples(name string) []Bucket {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.histograms[name]
	buckets := make([]Bucket, 0, len(h))
	for v, n := range h {
		buckets = append(buckets, Bucket{Value: v, Count: n})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Value < buckets[j].Value })
	return buckets
}

// Names lists the histograms that have samples.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.histograms))
	for name := range r.histograms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot copies every histogram.
func (r *Recorder) Snapshot() map[string][]Bucket {
	out := make(map[string][]Bucket)
	for _, name := range r.Names() {
		out[name] = r.Samples(name)
	}
	return out
}

// CustomResults copies the stored custom results.
func (r *Recorder) CustomResults() map[int]metrics.ThroughputData {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int]metrics.ThroughputData, len(r.custom))
	for id, data := range r.custom {
		out[id] = data
	}
	return out
}

// Reset drops every sample.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histograms = make(map[string]map[int64]int)
	r.custom = make(map[int]metrics.ThroughputData)
}
