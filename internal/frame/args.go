package frame

import (
	"math"
	"time"
)

// ManualSourceID marks args that were not produced by a begin-frame source.
const ManualSourceID uint64 = math.MaxUint32

// DefaultInterval is the vsync interval assumed when a producer does not report one.
const DefaultInterval = time.Second / 60

// ID identifies a frame-production opportunity within a begin-frame source.
type ID struct {
	SourceID       uint64
	SequenceNumber uint64
}

// Args describes one frame-production opportunity (a BeginFrame).
type Args struct {
	ID
	FrameTime time.Time
	Deadline  time.Time
	Interval  time.Duration
}

// NewArgs builds args whose deadline is one interval after frameTime.
func NewArgs(sourceID, sequence uint64, frameTime time.Time, interval time.Duration) Args {
	return Args{
		ID:        ID{SourceID: sourceID, SequenceNumber: sequence},
		FrameTime: frameTime,
		Deadline:  frameTime.Add(interval),
		Interval:  interval,
	}
}

// IsZero reports whether args carry no frame identity.
func (a Args) IsZero() bool {
	return a.SourceID == 0 && a.SequenceNumber == 0
}

// Ack acknowledges a BeginFrame, telling whether the frame produced damage.
type Ack struct {
	ID
	HasDamage bool
}

// NewAck acknowledges args.
func NewAck(args Args, hasDamage bool) Ack {
	return Ack{ID: args.ID, HasDamage: hasDamage}
}
