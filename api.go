package framesequence

import (
	"github.com/e7canasta/framesequence/internal/frame"
	"github.com/e7canasta/framesequence/internal/metrics"
	"github.com/e7canasta/framesequence/internal/replay"
	"github.com/e7canasta/framesequence/internal/report"
	"github.com/e7canasta/framesequence/internal/tracker"
)

// Public API - Re-export internal types as stable contract

// Args describes one frame-production opportunity
type Args = frame.Args

// Ack acknowledges a begin frame
type Ack = frame.Ack

// Feedback is the presentation result of a submitted frame
type Feedback = frame.Feedback

// FeedbackFlags qualify a presentation
type FeedbackFlags = frame.FeedbackFlags

// TrackerType identifies the interaction a sequence belongs to
type TrackerType = metrics.TrackerType

const (
	CompositorAnimation = metrics.CompositorAnimation
	MainThreadAnimation = metrics.MainThreadAnimation
	PinchZoom           = metrics.PinchZoom
	RAF                 = metrics.RAF
	TouchScroll         = metrics.TouchScroll
	Universal           = metrics.Universal
	Video               = metrics.Video
	WheelScroll         = metrics.WheelScroll
	ScrollbarScroll     = metrics.ScrollbarScroll
	Custom              = metrics.Custom
)

// ThreadType names a throughput lane
type ThreadType = metrics.ThreadType

const (
	ThreadUnknown    = metrics.ThreadUnknown
	ThreadCompositor = metrics.ThreadCompositor
	ThreadMain       = metrics.ThreadMain
	ThreadSlower     = metrics.ThreadSlower
	ThreadScrolling  = metrics.ThreadScrolling
)

// ThroughputData counts expected and produced frames
type ThroughputData = metrics.ThroughputData

// Reporter receives finalized samples
type Reporter = metrics.Reporter

// Options tunes trackers created by a Collection
type Options = tracker.Options

// Collection owns the trackers of every active sequence
type Collection = tracker.Collection

// Tracker follows one frame sequence
type Tracker = tracker.Tracker

// TerminationStatus is a tracker's lifecycle state
type TerminationStatus = tracker.TerminationStatus

// CustomTrackerResults maps custom sequence ids to their throughput
type CustomTrackerResults = tracker.CustomTrackerResults

// Recorder keeps every reported sample in memory
type Recorder = report.Recorder

// Tee fans samples out to several sinks
type Tee = report.Tee

// Sink is a Reporter that also accepts custom results
type Sink = report.Sink

// Player replays the b/B/n/N/s/S/e/E/P/R sequence language
type Player = replay.Player

// Notifier receives frame lifecycle notifications
type Notifier = replay.Notifier

// Public API errors - Re-export internal errors as stable contract
var (
	ErrSyntax       = replay.ErrSyntax
	ErrMainMismatch = replay.ErrMainMismatch
)
