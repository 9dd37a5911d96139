package tracker

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/e7canasta/framesequence/internal/frame"
	"github.com/e7canasta/framesequence/internal/metrics"
)

func TestStopSequenceDestroysIdleTrackers(t *testing.T) {
	f := newFixture(t)
	f.collection.StartSequence(metrics.CompositorAnimation)
	f.collection.StartSequence(metrics.MainThreadAnimation)
	if got := f.collection.Stats().Active; got != 3 {
		t.Fatalf("Expected 3 trackers, got %d", got)
	}

	f.collection.StopSequence(metrics.CompositorAnimation)

	if got := f.collection.Stats().Active; got != 2 {
		t.Errorf("Expected 2 trackers, got %d", got)
	}
	if f.collection.Tracker(metrics.MainThreadAnimation) == nil {
		t.Error("Expected main thread animation tracker")
	}
	if f.collection.Tracker(metrics.TouchScroll) == nil {
		t.Error("Expected touch scroll tracker")
	}
	// Nothing was awaiting presentation.
	if got := f.removalTrackers(); got != 0 {
		t.Errorf("Expected 0 removal trackers, got %d", got)
	}
}

func TestStartSequenceReturnsRunningTracker(t *testing.T) {
	f := newFixture(t)

	if got := f.collection.StartScrollSequence(metrics.TouchScroll, metrics.ThreadCompositor); got != f.tracker {
		t.Error("Expected the running tracker to be returned")
	}
	if got := f.collection.StartSequence(metrics.Custom); got != nil {
		t.Error("Expected custom type to be rejected by StartSequence")
	}
	if got := f.collection.StartSequence(metrics.MaxType); got != nil {
		t.Error("Expected invalid type to be rejected")
	}
}

func TestTrackLastImplFrame(t *testing.T) {
	tests := []struct {
		name          string
		enoughData    bool
		before        string
		after         string
		wantScheduled bool // still scheduled for termination at the end
	}{
		{name: "1", before: "b(1)s(1)e(1,0)b(4)", after: "P(1)", wantScheduled: true},
		{name: "2", enoughData: true, before: "b(1)", after: "s(1)e(1,0)P(1)"},
		{name: "3", enoughData: true, before: "b(1)s(1)", after: "e(1,0)P(1)"},
		{name: "4", enoughData: true, before: "b(1)s(1)e(1,0)", after: "P(1)"},
		{name: "5", before: "b(1)", after: "s(1)P(1)", wantScheduled: true},
		{name: "6", before: "b(1)s(1)", after: "P(1)", wantScheduled: true},
		{name: "7", enoughData: true, before: "b(1)s(1)e(1,0)b(2)", after: "n(2)e(2,0)P(1)"},
		{name: "8", enoughData: true, before: "b(1)s(1)e(1,0)b(2)n(2)", after: "e(2,0)P(1)"},
		{name: "9", enoughData: true, before: "b(1)s(1)e(1,0)b(2)n(2)e(2,0)", after: "P(1)"},
		{name: "10", before: "b(1)s(1)e(1,0)b(2)", after: "n(2)P(1)", wantScheduled: true},
		{name: "11", before: "b(1)s(1)e(1,0)b(2)n(2)", after: "P(1)", wantScheduled: true},
		{name: "12", enoughData: true, before: "b(1)s(1)e(1,0)P(1)b(2)", after: "n(2)e(2,0)"},
		{name: "13", enoughData: true, before: "b(1)s(1)e(1,0)P(1)b(2)n(2)", after: "e(2,0)"},
		{name: "15", enoughData: true, before: "b(1)", after: "s(1)e(1,0)b(2)s(2)e(2,0)P(1)"},
		{name: "16", enoughData: true, before: "b(1)s(1)", after: "e(1,0)b(2)s(2)e(2,0)P(1)"},
		{name: "17", enoughData: true, before: "b(1)s(1)e(1,0)", after: "b(2)s(2)e(2,0)P(1)"},
		{name: "18", enoughData: true, before: "b(1)", after: "s(1)e(1,0)b(2)n(2)e(2,0)P(1)"},
		{name: "19", enoughData: true, before: "b(1)s(1)", after: "e(1,0)b(2)n(2)e(2,0)P(1)"},
		{name: "20", enoughData: true, before: "b(1)s(1)e(1,0)", after: "b(2)n(2)e(2,0)P(1)"},
		{name: "21", enoughData: true, before: "b(1)", after: "n(1)e(1,0)"},
		{name: "22", enoughData: true, before: "b(1)n(1)", after: "e(1,0)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.enoughData {
				*f.tracker.ImplThroughput() = metrics.ThroughputData{Expected: 100, Produced: 100}
			}

			f.generate(tt.before)
			f.stop()
			if got := f.removalTrackers(); got != 1 {
				t.Fatalf("Expected 1 removal tracker after stop, got %d", got)
			}
			removal := f.collection.RemovalTracker(metrics.TouchScroll)
			if removal.Status() != StatusScheduledForTermination {
				t.Fatalf("Expected scheduled for termination, got %v", removal.Status())
			}

			f.generate(tt.after)

			if tt.wantScheduled {
				if got := f.removalTrackers(); got != 1 {
					t.Errorf("Expected 1 removal tracker, got %d", got)
				}
				if removal.Status() != StatusScheduledForTermination {
					t.Errorf("Expected scheduled for termination, got %v", removal.Status())
				}
				return
			}

			if got := f.removalTrackers(); got != 0 {
				t.Errorf("Expected removal tracker destroyed, got %d", got)
			}
			if got := f.hist.BucketCount(compositorMetric, 0); got != 1 {
				t.Errorf("Expected one 0%% compositor sample, got %v", f.hist.samples[compositorMetric])
			}
		})
	}
}

// TestTrackLastImplFrameLength verifies the effective thread reports the
// sequence length and the main thread does not.
func TestTrackLastImplFrameLength(t *testing.T) {
	sequences := []struct{ before, after string }{
		{"b(1)", "s(1)e(1,0)P(1)"},
		{"b(1)s(1)e(1,0)b(2)n(2)", "e(2,0)P(1)"},
		{"b(1)s(1)e(1,0)P(1)b(2)", "n(2)e(2,0)"},
		{"b(1)s(1)", "e(1,0)b(2)s(2)e(2,0)P(1)"},
		{"b(1)s(1)e(1,0)", "b(2)n(2)e(2,0)P(1)"},
	}

	for _, s := range sequences {
		t.Run(s.before, func(t *testing.T) {
			f := newFixture(t)
			*f.tracker.ImplThroughput() = metrics.ThroughputData{Expected: 100, Produced: 100}

			f.generate(s.before)
			f.stop()
			f.generate(s.after)

			if got := f.hist.BucketCount(lengthMetric, 101); got != 1 {
				t.Errorf("Expected length 101 once, got %v", f.hist.samples[lengthMetric])
			}
			if got := f.hist.BucketCount(lengthMetric, 0); got != 0 {
				t.Errorf("Expected no main thread length, got %d", got)
			}
		})
	}
}

func TestTrackLastImplFrameStoppedWhenIdle(t *testing.T) {
	for _, sequence := range []string{"b(1)s(1)e(1,0)P(1)b(2)n(2)e(2,0)", "b(1)n(1)e(1,0)"} {
		t.Run(sequence, func(t *testing.T) {
			f := newFixture(t)
			*f.tracker.ImplThroughput() = metrics.ThroughputData{Expected: 100, Produced: 100}

			f.generate(sequence)
			f.stop()

			if got := f.removalTrackers(); got != 0 {
				t.Errorf("Expected tracker destroyed at stop, got %d", got)
			}
			if got := f.hist.BucketCount(compositorMetric, 0); got != 1 {
				t.Errorf("Expected one 0%% compositor sample, got %v", f.hist.samples[compositorMetric])
			}
		})
	}
}

func TestTrackLastImplFrameTerminatesAtFrameEnd(t *testing.T) {
	f := newFixture(t)
	f.generate("b(1)s(1)P(1)")
	f.stop()
	if got := f.removalTrackers(); got != 1 {
		t.Fatalf("Expected 1 removal tracker, got %d", got)
	}

	f.generate("e(1,0)")

	if got := f.removalTrackers(); got != 0 {
		t.Errorf("Expected 0 removal trackers, got %d", got)
	}
}

func TestTerminationWithNullPresentationTimestamp(t *testing.T) {
	f := newFixture(t)
	f.generate("b(1)s(1)")
	f.stop()
	if got := f.removalTrackers(); got != 1 {
		t.Fatalf("Expected 1 removal tracker, got %d", got)
	}

	// A zero timestamp still acks the last impl frame.
	f.collection.NotifyFramePresented(1, frame.Feedback{Interval: frame.DefaultInterval})
	f.generate("e(1,0)")

	if got := f.removalTrackers(); got != 0 {
		t.Errorf("Expected 0 removal trackers, got %d", got)
	}
}

func TestTerminationAfterGraceSubmissions(t *testing.T) {
	t.Run("after last submission", func(t *testing.T) {
		f := newFixture(t)
		f.generate("b(1)s(1)e(1,0)")
		f.stop()
		if got := f.removalTrackers(); got != 1 {
			t.Fatalf("Expected 1 removal tracker, got %d", got)
		}

		f.generate("b(2)s(2)e(2,0)b(3)s(3)e(3,0)b(4)s(4)e(4,0)b(5)s(5)e(5,0)")

		if got := f.removalTrackers(); got != 0 {
			t.Errorf("Expected 0 removal trackers, got %d", got)
		}
	})

	t.Run("wraparound anchor", func(t *testing.T) {
		f := newFixture(t)
		f.generate("b(1)")
		args := f.args(1, 1)
		f.collection.NotifySubmitFrame(^uint32(0), false, frame.NewAck(args, true), args)
		f.generate("e(1,0)")
		f.stop()
		if got := f.removalTrackers(); got != 1 {
			t.Fatalf("Expected 1 removal tracker, got %d", got)
		}

		f.generate("b(2)s(1)e(2,0)b(3)s(2)e(3,0)b(4)s(3)e(4,0)")

		if got := f.removalTrackers(); got != 0 {
			t.Errorf("Expected 0 removal trackers, got %d", got)
		}
	})

	t.Run("anchored at first submission after stop", func(t *testing.T) {
		f := newFixture(t)
		f.generate("b(1)s(1)e(1,0)P(1)b(2)s(2)e(2,0)P(2)b(3)s(3)e(3,0)P(3)b(4)")
		f.stop()
		if got := f.removalTrackers(); got != 1 {
			t.Fatalf("Expected 1 removal tracker, got %d", got)
		}

		f.generate("s(4)")

		if got := f.removalTrackers(); got != 1 {
			t.Errorf("Expected 1 removal tracker, got %d", got)
		}
	})

	t.Run("configured grace", func(t *testing.T) {
		f := newFixtureWithOptions(t, Options{TerminationGraceFrames: 1})
		f.generate("b(1)s(1)e(1,0)")
		f.stop()

		f.generate("b(2)s(2)e(2,0)")
		if got := f.removalTrackers(); got != 1 {
			t.Fatalf("Expected tracker kept within grace, got %d", got)
		}

		f.generate("b(3)s(3)e(3,0)")
		if got := f.removalTrackers(); got != 0 {
			t.Errorf("Expected tracker forced out after grace, got %d", got)
		}
	})
}

func TestReportMetricsAtFixedInterval(t *testing.T) {
	f := newFixture(t)
	first := f.tracker
	frameTime := f.origin.Add(time.Second)

	args := frame.NewArgs(1, 1, frameTime, 16*time.Millisecond)
	f.collection.NotifyBeginImplFrame(args)
	f.collection.NotifyImplFrameCausedNoDamage(frame.NewAck(args, false))
	f.collection.NotifyFrameEnd(args, args)

	if got := f.collection.Stats().Active; got != 1 {
		t.Errorf("Expected 1 tracker, got %d", got)
	}
	if got := f.removalTrackers(); got != 0 {
		t.Errorf("Expected 0 removal trackers, got %d", got)
	}

	first.ImplThroughput().Expected += 101

	args = frame.NewArgs(1, 2, frameTime.Add(DefaultTimeDeltaToReport), 16*time.Millisecond)
	f.collection.NotifyBeginImplFrame(args)
	f.collection.NotifyImplFrameCausedNoDamage(frame.NewAck(args, false))
	f.collection.NotifyFrameEnd(args, args)

	if got := f.collection.Stats().Active; got != 1 {
		t.Errorf("Expected 1 tracker, got %d", got)
	}
	if got := f.removalTrackers(); got != 0 {
		t.Errorf("Expected 0 removal trackers, got %d", got)
	}
	if f.collection.Tracker(metrics.TouchScroll) == first {
		t.Error("Expected the tracker to be replaced after the report interval")
	}
	if got := f.hist.TotalCount(compositorMetric); got != 1 {
		t.Errorf("Expected 1 compositor sample, got %d", got)
	}
	if got := f.collection.Tracker(metrics.TouchScroll).Metrics().ScrollingThread(); got != metrics.ThreadCompositor {
		t.Errorf("Expected the new tracker on the compositor thread, got %v", got)
	}
}

func TestReportMetricsAtFixedIntervalBothScrollThreads(t *testing.T) {
	f := newFixture(t)
	compositor := f.tracker
	main := f.collection.StartScrollSequence(metrics.TouchScroll, metrics.ThreadMain)
	if got := f.collection.Stats().Active; got != 2 {
		t.Fatalf("Expected 2 trackers, got %d", got)
	}
	frameTime := f.origin.Add(time.Second)

	args := frame.NewArgs(1, 1, frameTime, 16*time.Millisecond)
	f.collection.NotifyBeginImplFrame(args)
	f.collection.NotifyImplFrameCausedNoDamage(frame.NewAck(args, false))
	f.collection.NotifyFrameEnd(args, args)

	compositor.ImplThroughput().Expected += 150
	main.MainThroughput().Expected += 150

	args = frame.NewArgs(1, 2, frameTime.Add(DefaultTimeDeltaToReport+time.Second), 16*time.Millisecond)
	f.collection.NotifyBeginImplFrame(args)
	f.collection.NotifyImplFrameCausedNoDamage(frame.NewAck(args, false))
	f.collection.NotifyFrameEnd(args, args)

	if got := f.collection.Stats().Active; got != 2 {
		t.Errorf("Expected 2 trackers, got %d", got)
	}
	if got := f.removalTrackers(); got != 0 {
		t.Errorf("Expected 0 removal trackers, got %d", got)
	}
	for _, tt := range []struct {
		thread metrics.ThreadType
		old    *Tracker
		metric string
	}{
		{metrics.ThreadCompositor, compositor, compositorMetric},
		{metrics.ThreadMain, main, mainMetric},
	} {
		tr, ok := f.collection.frameTrackers[key{typ: metrics.TouchScroll, thread: tt.thread}]
		if !ok {
			t.Errorf("Expected an active %v tracker", tt.thread)
			continue
		}
		if tr == tt.old {
			t.Errorf("Expected the %v tracker to be replaced", tt.thread)
		}
		if got := tr.Metrics().ScrollingThread(); got != tt.thread {
			t.Errorf("Expected the new tracker on %v, got %v", tt.thread, got)
		}
		if got := f.hist.BucketCount(tt.metric, 100); got != 1 {
			t.Errorf("Expected one 100%% sample in %s, got %v", tt.metric, f.hist.samples[tt.metric])
		}
	}
}

func TestTrackerTypeEncoding(t *testing.T) {
	f := newFixture(t)
	if got := f.collection.Stats().Active; got != 1 {
		t.Fatalf("Expected 1 tracker, got %d", got)
	}
	active := f.collection.ActiveTypes()
	if active != 16 {
		t.Errorf("Expected 16, got %d", active)
	}
	if !active.Has(metrics.TouchScroll) || active.Has(metrics.Universal) {
		t.Errorf("unexpected active types %b", active)
	}
}

func TestCustomTrackers(t *testing.T) {
	f := newFixture(t)
	results := make(CustomTrackerResults)
	f.collection.SetCustomTrackerResultsCallback(func(reported CustomTrackerResults) {
		for id, data := range reported {
			results[id] = data
		}
	})

	f.collection.StartCustomSequence(1)
	if got := f.collection.Stats().Custom; got != 1 {
		t.Fatalf("Expected 1 custom tracker, got %d", got)
	}

	// No reports.
	const token = 1
	f.collection.NotifyFramePresented(token, frame.Feedback{})
	if len(results) != 0 {
		t.Fatalf("Expected no results, got %v", results)
	}

	f.collection.StartCustomSequence(2)
	f.collection.StartCustomSequence(3)
	if got := f.collection.Stats().Custom; got != 3 {
		t.Fatalf("Expected 3 custom trackers, got %d", got)
	}
	f.collection.NotifyFramePresented(token, frame.Feedback{})
	if len(results) != 0 {
		t.Fatalf("Expected no results, got %v", results)
	}

	f.collection.StopCustomSequence(2)
	if got := f.collection.Stats().Custom; got != 2 {
		t.Fatalf("Expected 2 custom trackers, got %d", got)
	}

	// Tracker 2 has no data to report.
	f.collection.NotifyFramePresented(token, frame.Feedback{})
	if len(results) != 0 {
		t.Fatalf("Expected no results, got %v", results)
	}

	f.generate("b(1)B(0,1)s(1)S(1)e(1,0)P(1)")

	f.collection.StopCustomSequence(1)
	f.collection.StopCustomSequence(3)
	if got := f.collection.Stats().Custom; got != 0 {
		t.Fatalf("Expected 0 custom trackers, got %d", got)
	}

	f.collection.NotifyFramePresented(token, frame.Feedback{})
	want := CustomTrackerResults{
		1: {Expected: 1, Produced: 1},
		3: {Expected: 1, Produced: 1},
	}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Errorf("custom results mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeTrackers(t *testing.T) {
	f := newFixture(t)
	f.generate("b(1)s(1)e(1,0)P(1)")
	f.expectThroughput(1, 1, 0, 0)
	f.stop()

	if got := f.hist.TotalCount(compositorMetric); got != 0 {
		t.Errorf("Expected 0 samples, got %d", got)
	}
	if f.collection.Tracker(metrics.TouchScroll) != nil {
		t.Error("Expected touch scroll tracker to be stopped")
	}

	f.createNewTracker(metrics.ThreadCompositor)
	f.generate("b(2)s(2)e(2,0)P(2)b(100)s(3)e(100,0)P(3)")
	f.expectThroughput(99, 2, 0, 0)
	f.stop()

	if f.collection.Tracker(metrics.TouchScroll) != nil {
		t.Error("Expected touch scroll tracker to be stopped")
	}
	if got := f.hist.TotalCount(compositorMetric); got != 1 {
		t.Fatalf("Expected 1 sample, got %d", got)
	}
	if got := f.hist.BucketCount(compositorMetric, 97); got != 1 {
		t.Errorf("Expected the merged sample in bucket 97, got %v", f.hist.samples[compositorMetric])
	}
}

func TestMergeTrackersPresentAfterStopSequence(t *testing.T) {
	f := newFixture(t)
	f.generate("b(1)s(1)e(1,0)P(1)")
	f.stop()
	if got := f.hist.TotalCount(compositorMetric); got != 0 {
		t.Errorf("Expected 0 samples, got %d", got)
	}

	f.createNewTracker(metrics.ThreadCompositor)
	f.generate("b(2)s(2)e(2,0)P(2)b(100)s(3)e(100,0)")
	f.expectThroughput(99, 1, 0, 0)
	f.stop()
	f.generate("P(3)")

	if got := f.hist.TotalCount(compositorMetric); got != 1 {
		t.Fatalf("Expected 1 sample, got %d", got)
	}
	if got := f.hist.BucketCount(compositorMetric, 97); got != 1 {
		t.Errorf("Expected the merged sample in bucket 97, got %v", f.hist.samples[compositorMetric])
	}
}

func TestMergeTrackersScrollThreads(t *testing.T) {
	tests := []struct {
		name           string
		secondThread   metrics.ThreadType
		wantCompositor int
	}{
		{"same thread", metrics.ThreadCompositor, 1},
		{"different threads", metrics.ThreadMain, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.generate("b(1)s(1)e(1,0)P(1)b(80)s(2)e(80,0)P(2)")
			f.stop()

			f.createNewTracker(tt.secondThread)
			f.generate("b(81)s(3)e(81,0)P(3)b(101)s(4)e(101,0)P(4)")
			f.stop()

			if got := f.hist.TotalCount(compositorMetric); got != tt.wantCompositor {
				t.Errorf("Expected %d compositor samples, got %d", tt.wantCompositor, got)
			}
			if got := f.hist.TotalCount(mainMetric); got != 0 {
				t.Errorf("Expected 0 main samples, got %d", got)
			}
		})
	}
}

func TestSingleThreadedCreatesNoTrackers(t *testing.T) {
	c := NewCollection(Options{SingleThreaded: true}, nil)

	if c.StartSequence(metrics.Universal) != nil {
		t.Error("Expected no tracker in single-threaded mode")
	}
	if c.StartScrollSequence(metrics.WheelScroll, metrics.ThreadMain) != nil {
		t.Error("Expected no scroll tracker in single-threaded mode")
	}
	if c.StartCustomSequence(1) != nil {
		t.Error("Expected no custom tracker in single-threaded mode")
	}
	if c.ActiveTypes() != 0 {
		t.Errorf("Expected no active types, got %b", c.ActiveTypes())
	}
}

func TestClearAll(t *testing.T) {
	f := newFixture(t)
	f.collection.StartCustomSequence(4)
	f.generate("b(1)s(1)")
	f.stop()

	f.collection.ClearAll()

	if diff := cmp.Diff(Stats{}, f.collection.Stats()); diff != "" {
		t.Errorf("Stats mismatch after ClearAll (-want +got):\n%s", diff)
	}
}

func TestSnapshotsOrder(t *testing.T) {
	f := newFixture(t)
	f.collection.StartSequence(metrics.CompositorAnimation)
	f.collection.StartCustomSequence(2)
	f.generate("b(1)s(1)")
	f.stop()

	var got []string
	for _, s := range f.collection.Snapshots() {
		got = append(got, s.Type+"/"+s.Status)
	}
	want := []string{
		"CompositorAnimation/active",
		"Custom/active",
		"TouchScroll/scheduled_for_termination",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Snapshots mismatch (-want +got):\n%s", diff)
	}
}
