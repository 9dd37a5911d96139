package framesequence

import (
	"time"

	"github.com/e7canasta/framesequence/internal/frame"
	"github.com/e7canasta/framesequence/internal/replay"
	"github.com/e7canasta/framesequence/internal/report"
	"github.com/e7canasta/framesequence/internal/tracker"
)

// DefaultOptions returns the production tracker options
func DefaultOptions() Options {
	return tracker.DefaultOptions()
}

// NewCollection creates an empty collection. A nil reporter discards samples.
func NewCollection(opts Options, reporter Reporter) *Collection {
	return tracker.NewCollection(opts, reporter)
}

// NewRecorder creates an in-memory sink
func NewRecorder() *Recorder {
	return report.NewRecorder()
}

// NewArgs builds begin-frame args whose deadline is one interval after frameTime
func NewArgs(sourceID, sequence uint64, frameTime time.Time, interval time.Duration) Args {
	return frame.NewArgs(sourceID, sequence, frameTime, interval)
}

// NewAck acknowledges args
func NewAck(args Args, hasDamage bool) Ack {
	return frame.NewAck(args, hasDamage)
}

// TokenAfter reports whether frame token a comes after b, allowing for wraparound
func TokenAfter(a, b uint32) bool {
	return frame.TokenAfter(a, b)
}

// NewPlayer replays sequences into n with source id 1 and a 16ms interval
func NewPlayer(n Notifier) *Player {
	return replay.NewPlayer(n)
}

// Replay plays one sequence string into n
func Replay(n Notifier, sequence string) error {
	return replay.NewPlayer(n).PlayString(sequence)
}
