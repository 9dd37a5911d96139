package tracker

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/e7canasta/framesequence/internal/frame"
	"github.com/e7canasta/framesequence/internal/metrics"
)

// TerminationStatus is the removal lifecycle of a tracker.
type TerminationStatus int

const (
	StatusActive TerminationStatus = iota
	StatusScheduledForTermination
	StatusReadyForTermination
)

func (s TerminationStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusScheduledForTermination:
		return "scheduled_for_termination"
	case StatusReadyForTermination:
		return "ready_for_termination"
	}
	return fmt.Sprintf("TerminationStatus(%d)", int(s))
}

// frameData remembers the last begin-frame seen on one lane.
type frameData struct {
	prevSource uint64
	prevSeq    uint64
	prevDelta  uint64
}

type checkerboardState struct {
	frames        []uint32
	lastHad       bool
	lastTimestamp time.Time
}

// Tracker consumes the frame lifecycle notifications of one frame sequence
// and keeps its throughput metrics up to date. It is not safe for concurrent
// use; a Collection drives it from a single goroutine.
type Tracker struct {
	typ     metrics.TrackerType
	metrics *metrics.Metrics
	opts    Options
	status  TerminationStatus

	implData      frameData
	mainData      frameData
	resetAllState bool

	lastStartedImpl   uint64
	lastProcessedImpl uint64

	firstReceivedMain        uint64
	lastNoMainDamage         uint64
	lastSubmittedMain        uint64
	lastProcessedMain        uint64
	lastProcessedMainLatency uint64
	awaitingMain             uint64
	previousBeginMain        uint64
	currentBeginMain         uint64

	hadImplSubmittedBetweenCommits bool

	insideFrame                     bool
	frameHadNoCompositorDamage      bool
	compositorFrameSubmitted        bool
	submittedFrameHadNewMainContent bool

	firstSubmittedFrame uint32
	lastSubmittedFrame  uint32

	// Tokens carrying new main content, waiting for presentation.
	mainFrames                  []uint32
	expectingMainWhenSubmitImpl []uint32
	ignoredFrameTokens          map[uint32]struct{}

	checkerboard   checkerboardState
	firstFrameTime time.Time

	graceAnchor   uint32
	graceAnchored bool

	trace []string
}

// New creates an active tracker for a sequence of type t.
func New(t metrics.TrackerType, reporter metrics.Reporter, opts Options) *Tracker {
	opts = opts.withDefaults()
	m := metrics.New(t, reporter)
	m.SetMinFramesForReporting(opts.MinFramesForReporting)
	return &Tracker{
		typ:                t,
		metrics:            m,
		opts:               opts,
		ignoredFrameTokens: make(map[uint32]struct{}),
	}
}

func (t *Tracker) Type() metrics.TrackerType { return t.typ }

func (t *Tracker) Status() TerminationStatus { return t.status }

// Metrics exposes the live metrics. They stay owned by the tracker.
func (t *Tracker) Metrics() *metrics.Metrics { return t.metrics }

func (t *Tracker) ImplThroughput() *metrics.ThroughputData { return t.metrics.ImplThroughput() }

func (t *Tracker) MainThroughput() *metrics.ThroughputData { return t.metrics.MainThroughput() }

// IgnoredFrameTokens returns the ignored tokens in ascending numeric order.
func (t *Tracker) IgnoredFrameTokens() []uint32 {
	tokens := make([]uint32, 0, len(t.ignoredFrameTokens))
	for token := range t.ignoredFrameTokens {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i] < tokens[j] })
	return tokens
}

// Trace returns the recent events in the replay grammar, oldest first.
func (t *Tracker) Trace() string {
	return strings.Join(t.trace, "")
}

// TakeMetrics hands the accumulated metrics to the caller and continues with
// fresh, empty metrics of the same kind.
func (t *Tracker) TakeMetrics() *metrics.Metrics {
	taken := t.metrics
	t.metrics = taken.Empty()
	return taken
}

// ScheduleTerminate stops the tracker from accepting new frames. It becomes
// ready once nothing it submitted is awaiting presentation.
func (t *Tracker) ScheduleTerminate() {
	if t.status != StatusActive {
		return
	}
	if !t.insideFrame && t.lastSubmittedFrame == 0 {
		t.status = StatusReadyForTermination
		return
	}
	t.status = StatusScheduledForTermination
	if t.lastSubmittedFrame != 0 {
		t.graceAnchor = t.lastSubmittedFrame
		t.graceAnchored = true
	}
}

// ShouldReportMetricsNow reports whether the sequence ran long enough and
// collected enough frames to be flushed.
func (t *Tracker) ShouldReportMetricsNow(args frame.Args) bool {
	return t.metrics.HasEnoughDataForReporting() &&
		!t.firstFrameTime.IsZero() &&
		args.FrameTime.Sub(t.firstFrameTime) >= t.opts.TimeDeltaToReport
}

// PauseFrameProduction makes the next begin or frame end forget the lane
// sequence history, so a restarted source does not look like a regression.
func (t *Tracker) PauseFrameProduction() {
	t.appendTrace("R")
	t.resetAllState = true
}

func (t *Tracker) ReportBeginImplFrame(args frame.Args) {
	if t.status != StatusActive {
		return
	}
	src, seq := args.SourceID, args.SequenceNumber

	if t.shouldIgnoreBeginFrameSource(src) {
		if t.implData.prevSource == 0 || t.insideFrame || src == frame.ManualSourceID {
			return
		}
		slog.Debug("begin frame source changed, starting new epoch",
			"type", t.typ, "previous_source", t.implData.prevSource, "source", src)
		t.resetFrameData()
	}

	if t.resetAllState {
		t.resetFrameData()
		t.resetAllState = false
	} else if t.implData.prevSeq != 0 && seq <= t.implData.prevSeq {
		slog.Debug("begin frame sequence regressed, starting new epoch",
			"type", t.typ, "previous_sequence", t.implData.prevSeq, "sequence", seq)
		t.resetFrameData()
	}

	if t.insideFrame {
		t.anomaly("begin impl frame while a frame is open", "sequence", seq,
			"open_sequence", t.lastStartedImpl)
		t.closeFrame()
	}

	t.appendTrace("b(%d)", seq)
	t.insideFrame = true
	t.lastStartedImpl = seq
	t.updateTrackedFrameData(&t.implData, src, seq)
	t.ImplThroughput().Expected += t.implData.prevDelta

	if t.firstFrameTime.IsZero() {
		t.firstFrameTime = args.FrameTime
	}
}

func (t *Tracker) ReportBeginMainFrame(args frame.Args) {
	if t.status != StatusActive {
		return
	}
	src, seq := args.SourceID, args.SequenceNumber
	if t.shouldIgnoreBeginFrameSource(src) || t.shouldIgnoreSequence(seq) {
		return
	}
	if t.firstReceivedMain != 0 && t.firstReceivedMain > seq {
		return
	}

	t.appendTrace("B(%d,%d)", t.mainData.prevSeq, seq)
	t.lastProcessedMainLatency = 0
	t.awaitingMain = seq
	t.updateTrackedFrameData(&t.mainData, src, seq)

	if t.firstReceivedMain == 0 || t.firstReceivedMain <= t.lastNoMainDamage {
		t.firstReceivedMain = seq
	}
	t.MainThroughput().Expected += t.mainData.prevDelta
	t.previousBeginMain = t.currentBeginMain
	t.currentBeginMain = seq
}

// ReportMainFrameProcessed records a commit. A previous BeginMainFrame that
// was never submitted nor declared no-damage, with no impl submission since
// the last commit, was off-screen and is treated as no damage.
func (t *Tracker) ReportMainFrameProcessed(args frame.Args) {
	if t.status != StatusActive {
		return
	}
	if t.shouldIgnoreBeginFrameSource(args.SourceID) {
		return
	}
	seq := args.SequenceNumber
	t.appendTrace("E(%d)", seq)

	previousSubmittedOrNoDamage := t.previousBeginMain != 0 &&
		(t.lastSubmittedMain == t.previousBeginMain || t.lastNoMainDamage == t.previousBeginMain)
	if t.lastProcessedMain != 0 && !t.hadImplSubmittedBetweenCommits && !previousSubmittedOrNoDamage {
		t.decrement(&t.MainThroughput().Expected, t.mainData.prevDelta, "off-screen main frame")
		t.lastNoMainDamage = t.previousBeginMain
	}
	t.hadImplSubmittedBetweenCommits = false

	if t.firstReceivedMain != 0 && seq >= t.firstReceivedMain {
		if t.awaitingMain != 0 && t.awaitingMain != seq {
			slog.Debug("main frame processed out of order",
				"type", t.typ, "awaiting", t.awaitingMain, "sequence", seq)
		}
		t.awaitingMain = 0
		t.lastProcessedMain = seq
		latest := t.lastStartedImpl
		if t.lastProcessedImpl > latest {
			latest = t.lastProcessedImpl
		}
		t.lastProcessedMainLatency = 0
		if latest > seq {
			t.lastProcessedMainLatency = latest - seq
		}
	}
}

func (t *Tracker) ReportImplFrameCausedNoDamage(ack frame.Ack) {
	if t.status == StatusReadyForTermination {
		return
	}
	if t.shouldIgnoreBeginFrameSource(ack.SourceID) || t.shouldIgnoreSequence(ack.SequenceNumber) {
		return
	}
	t.appendTrace("n(%d)", ack.SequenceNumber)
	t.lastProcessedImpl = ack.SequenceNumber
	t.frameHadNoCompositorDamage = true
}

func (t *Tracker) ReportMainFrameCausedNoDamage(args frame.Args) {
	if t.status != StatusActive {
		return
	}
	if t.shouldIgnoreBeginFrameSource(args.SourceID) {
		return
	}
	seq := args.SequenceNumber
	if t.firstReceivedMain == 0 || t.firstReceivedMain > seq || t.lastNoMainDamage == seq {
		return
	}

	t.appendTrace("N(%d,%d)", t.lastNoMainDamage, seq)
	t.awaitingMain = 0
	t.lastNoMainDamage = seq
	t.decrement(&t.MainThroughput().Expected, 1, "main frame caused no damage")
	t.mainData.prevSeq = 0
}

// ReportSubmitFrame attributes a compositor frame to this sequence. Frames
// acking an impl frame this tracker did not start are kept as ignored tokens.
func (t *Tracker) ReportSubmitFrame(token uint32, hasMissingContent bool, ack frame.Ack, origin frame.Args) {
	if t.status == StatusReadyForTermination {
		return
	}

	if t.status == StatusScheduledForTermination {
		if !t.graceAnchored {
			t.graceAnchor = token
			t.graceAnchored = true
		} else if frame.TokenAfter(token, t.graceAnchor+t.opts.TerminationGraceFrames) {
			t.anomaly("stopped tracker exceeded termination grace window, forcing termination",
				"token", token, "anchor", t.graceAnchor, "grace_frames", t.opts.TerminationGraceFrames)
			t.status = StatusReadyForTermination
			return
		}
	}

	if t.shouldIgnoreBeginFrameSource(ack.SourceID) || t.shouldIgnoreSequence(ack.SequenceNumber) {
		t.ignoredFrameTokens[token] = struct{}{}
		return
	}

	t.appendTrace("s(%d)", token)
	if t.firstSubmittedFrame == 0 {
		t.firstSubmittedFrame = token
	}
	t.lastSubmittedFrame = token
	t.compositorFrameSubmitted = true
	t.lastProcessedImpl = ack.SequenceNumber
	t.hadImplSubmittedBetweenCommits = true

	originSeq := origin.SequenceNumber
	if !t.shouldIgnoreBeginFrameSource(origin.SourceID) && originSeq <= t.mainData.prevSeq {
		afterStart := t.firstReceivedMain != 0 && originSeq >= t.firstReceivedMain
		isNew := t.lastSubmittedMain == 0 || originSeq > t.lastSubmittedMain
		noDamage := t.lastNoMainDamage != 0 && originSeq == t.lastNoMainDamage
		if afterStart && isNew && !noDamage {
			t.appendTrace("S(%d)", originSeq)
			t.submittedFrameHadNewMainContent = true
			t.lastSubmittedMain = originSeq
			t.mainFrames = append(t.mainFrames, token)
		} else if t.mainData.prevSeq > t.lastSubmittedMain {
			t.expectingMainWhenSubmitImpl = append(t.expectingMainWhenSubmitImpl, token)
		}
	}

	if hasMissingContent {
		t.appendTrace("C")
		t.checkerboard.frames = append(t.checkerboard.frames, token)
	}
}

func (t *Tracker) ReportFrameEnd(args, mainArgs frame.Args) {
	if t.status == StatusReadyForTermination {
		return
	}
	if t.shouldIgnoreBeginFrameSource(args.SourceID) {
		return
	}

	shouldIgnore := t.shouldIgnoreSequence(args.SequenceNumber)
	if t.resetAllState {
		t.resetFrameData()
		t.resetAllState = false
	}
	if shouldIgnore {
		t.insideFrame = false
		return
	}
	t.appendTrace("e(%d,%d)", args.SequenceNumber, mainArgs.SequenceNumber)

	if t.compositorFrameSubmitted && t.submittedFrameHadNewMainContent && t.lastProcessedMainLatency > 0 {
		t.MainThroughput().Expected += t.lastProcessedMainLatency
	}

	if t.frameHadNoCompositorDamage && !t.compositorFrameSubmitted {
		t.decrement(&t.ImplThroughput().Expected, 1, "impl frame caused no damage")
		t.implData.prevSeq = 0
	}

	if t.status == StatusScheduledForTermination && t.lastSubmittedFrame == 0 {
		t.status = StatusReadyForTermination
	}

	t.closeFrame()
}

func (t *Tracker) ReportFramePresented(token uint32, feedback frame.Feedback) {
	submittedSincePresentation := t.lastSubmittedFrame != 0
	acksLastFrame := frame.TokenAtOrAfter(token, t.lastSubmittedFrame)

	if t.status == StatusScheduledForTermination &&
		(t.lastSubmittedFrame == 0 || acksLastFrame) && !t.insideFrame {
		t.status = StatusReadyForTermination
	}

	if t.firstSubmittedFrame == 0 || frame.TokenAfter(t.firstSubmittedFrame, token) {
		return
	}

	for ignored := range t.ignoredFrameTokens {
		if frame.TokenAfter(token, ignored) {
			delete(t.ignoredFrameTokens, ignored)
		}
	}
	if _, ok := t.ignoredFrameTokens[token]; ok {
		return
	}

	t.appendTrace("P(%d)", token)
	presented := !feedback.Failed()
	if presented && submittedSincePresentation {
		t.increment(t.ImplThroughput(), "impl frame presented")
		if acksLastFrame {
			t.lastSubmittedFrame = 0
		}
	}

	if presented {
		popped := false
		for len(t.mainFrames) > 0 && !frame.TokenAfter(t.mainFrames[0], token) {
			t.mainFrames = t.mainFrames[1:]
			popped = true
		}
		if popped {
			t.increment(t.MainThroughput(), "main frame presented")
		}
		for len(t.expectingMainWhenSubmitImpl) > 0 && !frame.TokenAfter(t.expectingMainWhenSubmitImpl[0], token) {
			t.expectingMainWhenSubmitImpl = t.expectingMainWhenSubmitImpl[1:]
		}

		if t.checkerboard.lastHad && !feedback.Timestamp.IsZero() && !t.checkerboard.lastTimestamp.IsZero() {
			elapsed := feedback.Timestamp.Sub(t.checkerboard.lastTimestamp)
			if elapsed > 0 {
				frames := (elapsed + time.Millisecond) / feedback.EffectiveInterval()
				t.metrics.AddCheckerboardedFrames(uint32(frames))
			}
		}
		t.checkerboard.lastHad = t.hasCheckerboarded(token)
		t.checkerboard.lastTimestamp = feedback.Timestamp
	}

	for len(t.checkerboard.frames) > 0 && !frame.TokenAfter(t.checkerboard.frames[0], token) {
		t.checkerboard.frames = t.checkerboard.frames[1:]
	}
}

func (t *Tracker) hasCheckerboarded(token uint32) bool {
	for _, f := range t.checkerboard.frames {
		if f == token {
			return true
		}
	}
	return false
}

// shouldIgnoreBeginFrameSource keeps the tracker on the first non-manual
// source it sees.
func (t *Tracker) shouldIgnoreBeginFrameSource(source uint64) bool {
	if t.implData.prevSource == 0 {
		return source == frame.ManualSourceID
	}
	return source != t.implData.prevSource
}

// shouldIgnoreSequence reports whether seq is not the open impl frame.
func (t *Tracker) shouldIgnoreSequence(seq uint64) bool {
	return seq != t.lastStartedImpl
}

func (t *Tracker) updateTrackedFrameData(d *frameData, source, seq uint64) {
	if d.prevSeq != 0 && d.prevSource == source && seq > d.prevSeq {
		d.prevDelta = seq - d.prevSeq
	} else {
		d.prevDelta = 1
	}
	d.prevSource = source
	d.prevSeq = seq
}

func (t *Tracker) resetFrameData() {
	t.implData = frameData{}
	t.mainData = frameData{}
}

func (t *Tracker) closeFrame() {
	t.frameHadNoCompositorDamage = false
	t.compositorFrameSubmitted = false
	t.submittedFrameHadNewMainContent = false
	t.lastProcessedMainLatency = 0
	t.insideFrame = false
	t.lastStartedImpl = 0
}

// decrement subtracts n from *v, refusing to wrap below zero.
func (t *Tracker) decrement(v *uint64, n uint64, what string) {
	if *v < n {
		t.anomaly("frames expected would underflow", "event", what, "expected", *v, "delta", n)
		*v = 0
		return
	}
	*v -= n
}

// increment counts a produced frame, refusing to exceed expected.
func (t *Tracker) increment(d *metrics.ThroughputData, what string) {
	if d.Produced >= d.Expected {
		t.anomaly("frames produced would exceed frames expected", "event", what,
			"expected", d.Expected, "produced", d.Produced)
		return
	}
	d.Produced++
}

func (t *Tracker) anomaly(msg string, args ...any) {
	args = append(args, "type", t.typ, "status", t.status, "trace", t.Trace())
	slog.Warn(msg, args...)
}

func (t *Tracker) appendTrace(format string, args ...any) {
	if len(t.trace) >= t.opts.TraceLimit {
		copy(t.trace, t.trace[1:])
		t.trace = t.trace[:len(t.trace)-1]
	}
	t.trace = append(t.trace, fmt.Sprintf(format, args...))
}

// Snapshot is a point-in-time view of a tracker for status reporting.
type Snapshot struct {
	Type                 string                 `json:"type"`
	Thread               string                 `json:"thread"`
	Status               string                 `json:"status"`
	Impl                 metrics.ThroughputData `json:"impl"`
	Main                 metrics.ThroughputData `json:"main"`
	FramesCheckerboarded uint32                 `json:"frames_checkerboarded"`
	PendingMainFrames    int                    `json:"pending_main_frames"`
	ExpectingMainFrames  int                    `json:"expecting_main_frames"`
	IgnoredFrameTokens   int                    `json:"ignored_frame_tokens"`
}

func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		Type:                 t.typ.String(),
		Thread:               t.metrics.EffectiveThread().String(),
		Status:               t.status.String(),
		Impl:                 *t.ImplThroughput(),
		Main:                 *t.MainThroughput(),
		FramesCheckerboarded: t.metrics.FramesCheckerboarded(),
		PendingMainFrames:    len(t.mainFrames),
		ExpectingMainFrames:  len(t.expectingMainWhenSubmitImpl),
		IgnoredFrameTokens:   len(t.ignoredFrameTokens),
	}
}
