package tracker

import (
	"log/slog"
	"sort"

	"github.com/e7canasta/framesequence/internal/frame"
	"github.com/e7canasta/framesequence/internal/metrics"
)

// ActiveTrackers is a bitmask with bit (1 << type) set for each active type.
type ActiveTrackers uint32

// Has reports whether a tracker of type t is active.
func (a ActiveTrackers) Has(t metrics.TrackerType) bool {
	return a&(1<<uint(t)) != 0
}

// CustomTrackerResults maps a custom sequence id to its main-lane throughput.
type CustomTrackerResults map[int]metrics.ThroughputData

type key struct {
	typ    metrics.TrackerType
	thread metrics.ThreadType
}

// Stats summarises the trackers a Collection owns.
type Stats struct {
	Active      int `json:"active"`
	Custom      int `json:"custom"`
	Removal     int `json:"removal"`
	Accumulated int `json:"accumulated"`
	Reports     int `json:"reports"`
}

// Collection owns the active, custom and removal-pending trackers and fans
// every frame notification out to all of them. Like Tracker, it is driven
// from a single goroutine.
type Collection struct {
	opts     Options
	reporter metrics.Reporter

	frameTrackers   map[key]*Tracker
	customTrackers  map[int]*Tracker
	removalTrackers []*Tracker

	// Metrics of removed trackers that did not have enough frames to report
	// on their own, keyed by type and effective thread.
	accumulated map[key]*metrics.Metrics

	customResults  CustomTrackerResults
	customCallback func(CustomTrackerResults)

	reports int
}

// NewCollection creates an empty collection. A nil reporter discards samples.
func NewCollection(opts Options, reporter metrics.Reporter) *Collection {
	if reporter == nil {
		reporter = metrics.Discard
	}
	return &Collection{
		opts:           opts.withDefaults(),
		reporter:       reporter,
		frameTrackers:  make(map[key]*Tracker),
		customTrackers: make(map[int]*Tracker),
		accumulated:    make(map[key]*metrics.Metrics),
		customResults:  make(CustomTrackerResults),
	}
}

// SetCustomTrackerResultsCallback registers the receiver of custom sequence
// results. It is called after a destroy pass that produced results.
func (c *Collection) SetCustomTrackerResultsCallback(fn func(CustomTrackerResults)) {
	c.customCallback = fn
}

// StartSequence starts a non-scroll sequence. It returns the running tracker
// if one of that type is already active, and nil in single-threaded mode.
func (c *Collection) StartSequence(t metrics.TrackerType) *Tracker {
	return c.startSequence(t, metrics.ThreadUnknown)
}

// StartScrollSequence starts a scroll sequence driven by thread.
func (c *Collection) StartScrollSequence(t metrics.TrackerType, thread metrics.ThreadType) *Tracker {
	return c.startSequence(t, thread)
}

func (c *Collection) startSequence(t metrics.TrackerType, thread metrics.ThreadType) *Tracker {
	if c.opts.SingleThreaded || !t.Valid() || t == metrics.Custom {
		return nil
	}
	k := key{typ: t, thread: thread}
	if existing, ok := c.frameTrackers[k]; ok {
		return existing
	}
	tr := New(t, c.reporter, c.opts)
	if t.IsScroll() {
		tr.Metrics().SetScrollingThread(thread)
	}
	c.frameTrackers[k] = tr
	slog.Debug("frame sequence started", "type", t, "thread", thread)
	return tr
}

// StopSequence schedules the active tracker of type t for termination. Scroll
// types look for a compositor-driven tracker first.
func (c *Collection) StopSequence(t metrics.TrackerType) {
	k := key{typ: t, thread: metrics.ThreadUnknown}
	if t.IsScroll() {
		k.thread = metrics.ThreadCompositor
		if _, ok := c.frameTrackers[k]; !ok {
			k.thread = metrics.ThreadMain
		}
	}
	c.stopSequence(k)
}

// stopSequence schedules exactly the tracker stored under k.
func (c *Collection) stopSequence(k key) {
	tr, ok := c.frameTrackers[k]
	if !ok {
		return
	}
	delete(c.frameTrackers, k)
	tr.ScheduleTerminate()
	c.removalTrackers = append(c.removalTrackers, tr)
	slog.Debug("frame sequence stopped", "type", k.typ, "thread", k.thread, "status", tr.Status())
	c.DestroyTrackers()
}

// StartCustomSequence starts a custom sequence. Starting a running id is a no-op.
func (c *Collection) StartCustomSequence(id int) *Tracker {
	if c.opts.SingleThreaded {
		return nil
	}
	if existing, ok := c.customTrackers[id]; ok {
		return existing
	}
	tr := New(metrics.Custom, c.reporter, c.opts)
	tr.Metrics().SetCustomReporter(func(data metrics.ThroughputData) {
		c.customResults[id] = data
	})
	c.customTrackers[id] = tr
	return tr
}

// StopCustomSequence schedules a custom sequence for termination. Its result
// is delivered by a later destroy pass.
func (c *Collection) StopCustomSequence(id int) {
	tr, ok := c.customTrackers[id]
	if !ok {
		return
	}
	delete(c.customTrackers, id)
	tr.ScheduleTerminate()
	c.removalTrackers = append(c.removalTrackers, tr)
}

// ClearAll drops every tracker and pending result without reporting.
func (c *Collection) ClearAll() {
	c.frameTrackers = make(map[key]*Tracker)
	c.customTrackers = make(map[int]*Tracker)
	c.removalTrackers = nil
	c.accumulated = make(map[key]*metrics.Metrics)
	c.customResults = make(CustomTrackerResults)
}

// NotifyBeginImplFrame first restarts trackers whose report interval elapsed.
func (c *Collection) NotifyBeginImplFrame(args frame.Args) {
	c.recreateTrackers(args)
	c.each(func(t *Tracker) { t.ReportBeginImplFrame(args) })
}

func (c *Collection) NotifyBeginMainFrame(args frame.Args) {
	c.each(func(t *Tracker) { t.ReportBeginMainFrame(args) })
}

func (c *Collection) NotifyMainFrameProcessed(args frame.Args) {
	c.each(func(t *Tracker) { t.ReportMainFrameProcessed(args) })
}

func (c *Collection) NotifyImplFrameCausedNoDamage(ack frame.Ack) {
	c.each(func(t *Tracker) { t.ReportImplFrameCausedNoDamage(ack) })
}

func (c *Collection) NotifyMainFrameCausedNoDamage(args frame.Args) {
	c.each(func(t *Tracker) { t.ReportMainFrameCausedNoDamage(args) })
}

func (c *Collection) NotifyPauseFrameProduction() {
	c.each(func(t *Tracker) { t.PauseFrameProduction() })
}

func (c *Collection) NotifySubmitFrame(token uint32, hasMissingContent bool, ack frame.Ack, origin frame.Args) {
	c.each(func(t *Tracker) { t.ReportSubmitFrame(token, hasMissingContent, ack, origin) })
}

func (c *Collection) NotifyFrameEnd(args, mainArgs frame.Args) {
	c.each(func(t *Tracker) { t.ReportFrameEnd(args, mainArgs) })
	c.DestroyTrackers()
}

func (c *Collection) NotifyFramePresented(token uint32, feedback frame.Feedback) {
	c.each(func(t *Tracker) { t.ReportFramePresented(token, feedback) })
	c.DestroyTrackers()
}

// DestroyTrackers flushes and drops every removal tracker that is ready for
// termination. Sequences too short to report are kept accumulated and merged
// into the next removed sequence of the same type and effective thread.
func (c *Collection) DestroyTrackers() {
	kept := c.removalTrackers[:0]
	for _, tr := range c.removalTrackers {
		if tr.Status() != StatusReadyForTermination {
			kept = append(kept, tr)
			continue
		}
		m := tr.TakeMetrics()
		if m.Type() == metrics.Custom {
			if m.HasDataLeftForReporting() {
				m.ReportMetrics()
			}
			continue
		}

		k := key{typ: m.Type(), thread: m.EffectiveThread()}
		if acc, ok := c.accumulated[k]; ok {
			m.Merge(acc)
			delete(c.accumulated, k)
		}
		if m.HasEnoughDataForReporting() {
			m.ReportMetrics()
			c.reports++
		}
		if m.HasDataLeftForReporting() {
			c.accumulated[k] = m
		}
	}
	for i := len(kept); i < len(c.removalTrackers); i++ {
		c.removalTrackers[i] = nil
	}
	c.removalTrackers = kept

	if c.customCallback != nil && len(c.customResults) > 0 {
		results := c.customResults
		c.customResults = make(CustomTrackerResults)
		c.customCallback(results)
	}
}

// ActiveTypes returns the bitmask of active tracker types.
func (c *Collection) ActiveTypes() ActiveTrackers {
	var mask ActiveTrackers
	for k := range c.frameTrackers {
		mask |= 1 << uint(k.typ)
	}
	return mask
}

// Tracker returns the active tracker for type t, using the same lookup as
// StopSequence.
func (c *Collection) Tracker(t metrics.TrackerType) *Tracker {
	if t.IsScroll() {
		if tr, ok := c.frameTrackers[key{typ: t, thread: metrics.ThreadCompositor}]; ok {
			return tr
		}
		return c.frameTrackers[key{typ: t, thread: metrics.ThreadMain}]
	}
	return c.frameTrackers[key{typ: t, thread: metrics.ThreadUnknown}]
}

// RemovalTracker returns the oldest removal-pending tracker of type t.
func (c *Collection) RemovalTracker(t metrics.TrackerType) *Tracker {
	for _, tr := range c.removalTrackers {
		if tr.Type() == t {
			return tr
		}
	}
	return nil
}

func (c *Collection) Stats() Stats {
	return Stats{
		Active:      len(c.frameTrackers),
		Custom:      len(c.customTrackers),
		Removal:     len(c.removalTrackers),
		Accumulated: len(c.accumulated),
		Reports:     c.reports,
	}
}

// Snapshots returns every tracker's state, active first, ordered by type.
func (c *Collection) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(c.frameTrackers)+len(c.customTrackers)+len(c.removalTrackers))
	for _, k := range c.sortedKeys() {
		out = append(out, c.frameTrackers[k].Snapshot())
	}
	ids := make([]int, 0, len(c.customTrackers))
	for id := range c.customTrackers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		out = append(out, c.customTrackers[id].Snapshot())
	}
	for _, tr := range c.removalTrackers {
		out = append(out, tr.Snapshot())
	}
	return out
}

func (c *Collection) recreateTrackers(args frame.Args) {
	var recreate []key
	for _, k := range c.sortedKeys() {
		if c.frameTrackers[k].ShouldReportMetricsNow(args) {
			recreate = append(recreate, k)
		}
	}
	for _, k := range recreate {
		slog.Debug("frame sequence report interval elapsed", "type", k.typ, "thread", k.thread)
		c.stopSequence(k)
		c.startSequence(k.typ, k.thread)
	}
}

// each visits trackers in a stable order: active, custom, then removal.
func (c *Collection) each(fn func(*Tracker)) {
	for _, k := range c.sortedKeys() {
		fn(c.frameTrackers[k])
	}
	for _, tr := range c.customTrackers {
		fn(tr)
	}
	for _, tr := range c.removalTrackers {
		fn(tr)
	}
}

func (c *Collection) sortedKeys() []key {
	keys := make([]key, 0, len(c.frameTrackers))
	for k := range c.frameTrackers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].typ != keys[j].typ {
			return keys[i].typ < keys[j].typ
		}
		return keys[i].thread < keys[j].thread
	})
	return keys
}
