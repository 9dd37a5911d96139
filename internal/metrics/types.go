package metrics

// TrackerType identifies the kind of interaction a frame sequence belongs to.
// Values are bit positions in ActiveTypes masks and must not be reordered.
type TrackerType int

const (
	CompositorAnimation TrackerType = iota
	MainThreadAnimation
	PinchZoom
	RAF
	TouchScroll
	Universal
	Video
	WheelScroll
	ScrollbarScroll
	Custom
	MaxType
)

// IsScroll reports whether sequences of this type are keyed by scrolling thread.
func (t TrackerType) IsScroll() bool {
	return t == TouchScroll || t == WheelScroll || t == ScrollbarScroll
}

// Valid reports whether t names a real tracker type.
func (t TrackerType) Valid() bool {
	return t >= CompositorAnimation && t < MaxType
}

// ThreadType names a throughput lane.
type ThreadType int

const (
	ThreadUnknown ThreadType = iota
	ThreadCompositor
	ThreadMain
	// ThreadSlower is the worse of the compositor and main lanes.
	ThreadSlower
	// ThreadScrolling is a reporting lane only: whichever thread drove a scroll.
	ThreadScrolling
)

// ThroughputData counts frames a lane was expected to produce and the frames
// it actually produced. Produced never exceeds Expected.
type ThroughputData struct {
	Expected uint64 `json:"frames_expected"`
	Produced uint64 `json:"frames_produced"`
}

// Merge adds other's counts.
func (d *ThroughputData) Merge(other ThroughputData) {
	d.Expected += other.Expected
	d.Produced += other.Produced
}

// DroppedFramePercent returns the share of expected frames that were not
// produced, in whole percent. Callers must ensure Expected > 0.
func (d ThroughputData) DroppedFramePercent() int {
	return int(100 * (d.Expected - d.Produced) / d.Expected)
}

// Reporter receives finalized smoothness samples.
type Reporter interface {
	ReportPercentDroppedFrames(thread ThreadType, t TrackerType, percent int)
	ReportFrameSequenceLength(t TrackerType, framesExpected uint64)
	ReportCheckerboarding(t TrackerType, frames uint32, percent int)
}

// Discard is a Reporter that drops every sample.
var Discard Reporter = discard{}

type discard struct{}

func (discard) ReportPercentDroppedFrames(ThreadType, TrackerType, int) {}
func (discard) ReportFrameSequenceLength(TrackerType, uint64)           {}
func (discard) ReportCheckerboarding(TrackerType, uint32, int)          {}
