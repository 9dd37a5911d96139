package tracker

import (
	"testing"
	"time"

	"github.com/e7canasta/framesequence/internal/frame"
	"github.com/e7canasta/framesequence/internal/metrics"
	"github.com/e7canasta/framesequence/internal/replay"
)

const (
	implDamage = 1 << iota
	mainDamage
)

const (
	compositorMetric = "Graphics.Smoothness.PercentDroppedFrames.CompositorThread.TouchScroll"
	mainMetric       = "Graphics.Smoothness.PercentDroppedFrames.MainThread.TouchScroll"
	lengthMetric     = "Graphics.Smoothness.FrameSequenceLength.TouchScroll"
)

// histograms records samples by histogram name.
type histograms struct {
	samples map[string][]int64
}

func newHistograms() *histograms {
	return &histograms{samples: make(map[string][]int64)}
}

func (h *histograms) ReportPercentDroppedFrames(thread metrics.ThreadType, t metrics.TrackerType, percent int) {
	name := metrics.ThroughputHistogramName(t, thread)
	h.samples[name] = append(h.samples[name], int64(percent))
}

func (h *histograms) ReportFrameSequenceLength(t metrics.TrackerType, framesExpected uint64) {
	name := metrics.FrameSequenceLengthHistogramName(t)
	h.samples[name] = append(h.samples[name], int64(framesExpected))
}

func (h *histograms) ReportCheckerboarding(t metrics.TrackerType, frames uint32, percent int) {
	name := metrics.CheckerboardingHistogramName(t)
	h.samples[name] = append(h.samples[name], int64(percent))
}

func (h *histograms) TotalCount(name string) int {
	return len(h.samples[name])
}

func (h *histograms) BucketCount(name string, value int64) int {
	n := 0
	for _, v := range h.samples[name] {
		if v == value {
			n++
		}
	}
	return n
}

// fixture drives a collection that starts with a compositor-driven touch
// scroll tracker.
type fixture struct {
	t          *testing.T
	collection *Collection
	tracker    *Tracker
	hist       *histograms
	player     *replay.Player
	origin     time.Time
	token      uint32
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithOptions(t, DefaultOptions())
}

func newFixtureWithOptions(t *testing.T, opts Options) *fixture {
	t.Helper()
	origin := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	hist := newHistograms()
	c := NewCollection(opts, hist)
	f := &fixture{
		t:          t,
		collection: c,
		hist:       hist,
		origin:     origin,
		player: replay.NewPlayer(c,
			replay.WithOrigin(origin),
			replay.WithClock(func() time.Time { return origin })),
	}
	f.tracker = c.StartScrollSequence(metrics.TouchScroll, metrics.ThreadCompositor)
	if f.tracker == nil {
		t.Fatal("StartScrollSequence returned nil")
	}
	return f
}

func (f *fixture) createNewTracker(thread metrics.ThreadType) {
	f.tracker = f.collection.StartScrollSequence(metrics.TouchScroll, thread)
}

// generate plays a sequence such as "b(1)s(1)e(1,0)P(1)".
func (f *fixture) generate(sequence string) {
	f.t.Helper()
	if err := f.player.PlayString(sequence); err != nil {
		f.t.Fatalf("PlayString(%q) failed: %v", sequence, err)
	}
}

func (f *fixture) args(source, seq uint64) frame.Args {
	return frame.NewArgs(source, seq, f.origin.Add(time.Duration(seq)*16*time.Millisecond), 16*time.Millisecond)
}

func (f *fixture) nextToken() uint32 {
	f.token++
	return f.token
}

func (f *fixture) startImplAndMainFrames(args frame.Args) {
	f.collection.NotifyBeginImplFrame(args)
	f.collection.NotifyBeginMainFrame(args)
}

// dispatchCompleteFrame runs one whole frame and returns the submitted token,
// or 0 when the frame had no impl damage.
func (f *fixture) dispatchCompleteFrame(args frame.Args, damage int, hasMissingContent bool) uint32 {
	f.startImplAndMainFrames(args)

	if damage&implDamage == 0 {
		f.collection.NotifyImplFrameCausedNoDamage(frame.NewAck(args, false))
		f.collection.NotifyMainFrameCausedNoDamage(args)
		f.collection.NotifyFrameEnd(args, args)
		return 0
	}

	if damage&mainDamage == 0 {
		f.collection.NotifyMainFrameCausedNoDamage(args)
	} else {
		f.collection.NotifyMainFrameProcessed(args)
	}
	token := f.nextToken()
	f.collection.NotifySubmitFrame(token, hasMissingContent, frame.NewAck(args, true), args)
	f.collection.NotifyFrameEnd(args, args)
	return token
}

func (f *fixture) present(token uint32, at time.Time) {
	f.collection.NotifyFramePresented(token, frame.Feedback{Timestamp: at, Interval: frame.DefaultInterval})
}

func (f *fixture) stop() {
	f.collection.StopSequence(metrics.TouchScroll)
}

func (f *fixture) removalTrackers() int {
	return f.collection.Stats().Removal
}

func (f *fixture) expectThroughput(implExpected, implProduced, mainExpected, mainProduced uint64) {
	f.t.Helper()
	impl, main := f.tracker.ImplThroughput(), f.tracker.MainThroughput()
	if impl.Expected != implExpected {
		f.t.Errorf("impl frames expected: Expected %d, got %d", implExpected, impl.Expected)
	}
	if impl.Produced != implProduced {
		f.t.Errorf("impl frames produced: Expected %d, got %d", implProduced, impl.Produced)
	}
	if main.Expected != mainExpected {
		f.t.Errorf("main frames expected: Expected %d, got %d", mainExpected, main.Expected)
	}
	if main.Produced != mainProduced {
		f.t.Errorf("main frames produced: Expected %d, got %d", mainProduced, main.Produced)
	}
}
