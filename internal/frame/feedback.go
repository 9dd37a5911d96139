package frame

import "time"

// FeedbackFlags qualify a presentation.
type FeedbackFlags uint32

const (
	// FeedbackVSync means the timestamp is aligned with a vsync.
	FeedbackVSync FeedbackFlags = 1 << iota
	// FeedbackFailure means the frame was never shown.
	FeedbackFailure
	// FeedbackHWClock means the timestamp comes from the display hardware clock.
	FeedbackHWClock
	// FeedbackHWCompletion means the display signalled completion.
	FeedbackHWCompletion
	// FeedbackZeroCopy means the frame was scanned out without a copy.
	FeedbackZeroCopy
)

// Feedback reports when (and whether) a submitted frame reached the screen.
//
// A zero Timestamp is still a valid presentation; it only cannot be used to
// measure how long a frame stayed on screen.
type Feedback struct {
	Timestamp time.Time
	Interval  time.Duration
	Flags     FeedbackFlags
}

// Failed reports whether the frame was dropped by the display pipeline.
func (f Feedback) Failed() bool {
	return f.Flags&FeedbackFailure != 0
}

// EffectiveInterval returns the reported interval, or DefaultInterval when unset.
func (f Feedback) EffectiveInterval() time.Duration {
	if f.Interval <= 0 {
		return DefaultInterval
	}
	return f.Interval
}
