package metrics

import "log/slog"

// MinFramesForThroughputMetric is the default number of expected frames a
// lane needs before its dropped-frame percentage is reported.
const MinFramesForThroughputMetric = 100

// Metrics aggregates the throughput of one frame sequence.
type Metrics struct {
	typ             TrackerType
	scrollingThread ThreadType

	impl ThroughputData
	main ThroughputData

	framesCheckerboarded uint32

	reporter       Reporter
	customReporter func(ThroughputData)
	minFrames      uint64
	reports        int
}

// New creates metrics for a sequence of type t. A nil reporter discards samples.
func New(t TrackerType, reporter Reporter) *Metrics {
	if reporter == nil {
		reporter = Discard
	}
	return &Metrics{
		typ:       t,
		reporter:  reporter,
		minFrames: MinFramesForThroughputMetric,
	}
}

func (m *Metrics) Type() TrackerType { return m.typ }

// ScrollingThread is the thread driving a scroll sequence, or ThreadUnknown.
func (m *Metrics) ScrollingThread() ThreadType { return m.scrollingThread }

// SetScrollingThread tags which lane drives this sequence. Only meaningful for
// scroll types.
func (m *Metrics) SetScrollingThread(thread ThreadType) {
	m.scrollingThread = thread
}

// SetCustomReporter installs the callback that receives custom sequence results.
func (m *Metrics) SetCustomReporter(fn func(ThroughputData)) {
	m.customReporter = fn
}

// SetMinFramesForReporting overrides MinFramesForThroughputMetric. Zero is ignored.
func (m *Metrics) SetMinFramesForReporting(n uint64) {
	if n > 0 {
		m.minFrames = n
	}
}

// Empty returns metrics with the same type, reporters and thresholds as m but
// no frames.
func (m *Metrics) Empty() *Metrics {
	return &Metrics{
		typ:             m.typ,
		scrollingThread: m.scrollingThread,
		reporter:        m.reporter,
		customReporter:  m.customReporter,
		minFrames:       m.minFrames,
	}
}

// ImplThroughput is the compositor lane. Callers mutate it in place.
func (m *Metrics) ImplThroughput() *ThroughputData { return &m.impl }

// MainThroughput is the main-thread lane. Callers mutate it in place.
func (m *Metrics) MainThroughput() *ThroughputData { return &m.main }

func (m *Metrics) FramesCheckerboarded() uint32 { return m.framesCheckerboarded }

func (m *Metrics) AddCheckerboardedFrames(n uint32) {
	m.framesCheckerboarded += n
}

// Reports is the number of ReportMetrics calls that emitted at least one sample.
func (m *Metrics) Reports() int { return m.reports }

// EffectiveThread is the lane whose numbers describe the user-visible
// smoothness of this sequence.
func (m *Metrics) EffectiveThread() ThreadType {
	switch m.typ {
	case CompositorAnimation, PinchZoom:
		return ThreadCompositor
	case MainThreadAnimation, RAF, Video:
		return ThreadMain
	case TouchScroll, ScrollbarScroll, WheelScroll:
		return m.scrollingThread
	case Universal:
		return ThreadSlower
	}
	return ThreadUnknown
}

// Merge folds other into m and empties other so it cannot report the same
// frames again.
func (m *Metrics) Merge(other *Metrics) {
	if other.typ != m.typ || other.EffectiveThread() != m.EffectiveThread() {
		slog.Warn("merging frame sequence metrics of different kinds",
			"type", m.typ, "other_type", other.typ,
			"thread", m.EffectiveThread(), "other_thread", other.EffectiveThread())
	}
	m.impl.Merge(other.impl)
	m.main.Merge(other.main)
	m.framesCheckerboarded += other.framesCheckerboarded

	other.impl = ThroughputData{}
	other.main = ThroughputData{}
	other.framesCheckerboarded = 0
}

// HasEnoughDataForReporting reports whether either lane reached the threshold.
func (m *Metrics) HasEnoughDataForReporting() bool {
	return m.impl.Expected >= m.minFrames || m.main.Expected >= m.minFrames
}

// HasDataLeftForReporting reports whether any frame is still unreported.
func (m *Metrics) HasDataLeftForReporting() bool {
	return m.impl.Expected > 0 || m.main.Expected > 0
}

// ReportMetrics emits every lane that reached the threshold and resets it, so
// a second call without new frames emits nothing.
func (m *Metrics) ReportMetrics() {
	if m.typ == Custom {
		if m.customReporter != nil {
			m.customReporter(m.main)
		}
		m.impl = ThroughputData{}
		m.main = ThroughputData{}
		m.framesCheckerboarded = 0
		m.reports++
		return
	}

	effective := m.EffectiveThread()
	implPercent, implOK := m.reportLane(ThreadCompositor, m.impl, effective)
	mainPercent, mainOK := m.reportLane(ThreadMain, m.main, effective)

	switch {
	case m.typ.IsScroll():
		switch m.scrollingThread {
		case ThreadCompositor:
			if implOK {
				m.reporter.ReportPercentDroppedFrames(ThreadScrolling, m.typ, implPercent)
			}
		case ThreadMain:
			if mainOK {
				m.reporter.ReportPercentDroppedFrames(ThreadScrolling, m.typ, mainPercent)
			}
		}
	case effective == ThreadSlower && (implOK || mainOK):
		slower := implPercent
		if mainOK && (!implOK || mainPercent > implPercent) {
			slower = mainPercent
		}
		m.reporter.ReportPercentDroppedFrames(ThreadSlower, m.typ, slower)
		if !implOK {
			m.reporter.ReportFrameSequenceLength(m.typ, m.main.Expected)
		} else {
			m.reporter.ReportFrameSequenceLength(m.typ, m.impl.Expected)
		}
	}

	if m.impl.Expected >= m.minFrames {
		percent := int(100 * uint64(m.framesCheckerboarded) / m.impl.Expected)
		m.reporter.ReportCheckerboarding(m.typ, m.framesCheckerboarded, percent)
		m.framesCheckerboarded = 0
	}

	if implOK || mainOK {
		m.reports++
		slog.Debug("frame sequence reported",
			"type", m.typ,
			"thread", effective,
			"impl_expected", m.impl.Expected, "impl_produced", m.impl.Produced,
			"main_expected", m.main.Expected, "main_produced", m.main.Produced)
	}

	if implOK {
		m.impl = ThroughputData{}
	}
	if mainOK {
		m.main = ThroughputData{}
	}
}

// reportLane emits the dropped-frame percentage of one lane, plus the sequence
// length when the lane is the effective thread.
func (m *Metrics) reportLane(thread ThreadType, data ThroughputData, effective ThreadType) (int, bool) {
	if data.Expected < m.minFrames {
		return 0, false
	}
	if effective == thread {
		m.reporter.ReportFrameSequenceLength(m.typ, data.Expected)
	}
	percent := data.DroppedFramePercent()
	m.reporter.ReportPercentDroppedFrames(thread, m.typ, percent)
	return percent, true
}
