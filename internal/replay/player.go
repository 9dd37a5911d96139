package replay

import (
	"fmt"
	"time"

	"github.com/e7canasta/framesequence/internal/frame"
)

// Notifier receives frame lifecycle notifications. A tracker collection
// satisfies it.
type Notifier interface {
	NotifyBeginImplFrame(args frame.Args)
	NotifyBeginMainFrame(args frame.Args)
	NotifyMainFrameProcessed(args frame.Args)
	NotifyImplFrameCausedNoDamage(ack frame.Ack)
	NotifyMainFrameCausedNoDamage(args frame.Args)
	NotifySubmitFrame(token uint32, hasMissingContent bool, ack frame.Ack, origin frame.Args)
	NotifyFrameEnd(args, mainArgs frame.Args)
	NotifyFramePresented(token uint32, feedback frame.Feedback)
	NotifyPauseFrameProduction()
}

// Player turns parsed events into notifications on a single begin-frame source.
type Player struct {
	target   Notifier
	sourceID uint64
	interval time.Duration
	origin   time.Time
	now      func() time.Time
}

// Option configures a Player.
type Option func(*Player)

// WithSourceID sets the begin-frame source. The default is 1.
func WithSourceID(id uint64) Option {
	return func(p *Player) { p.sourceID = id }
}

// WithInterval sets the vsync interval. The default is 16ms.
func WithInterval(d time.Duration) Option {
	return func(p *Player) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithOrigin sets the frame time of sequence number zero.
func WithOrigin(t time.Time) Option {
	return func(p *Player) { p.origin = t }
}

// WithClock sets the clock used for presentation timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Player) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPlayer(target Notifier, opts ...Option) *Player {
	p := &Player{
		target:   target,
		sourceID: 1,
		interval: 16 * time.Millisecond,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.origin.IsZero() {
		p.origin = p.now()
	}
	return p
}

// Args builds the begin-frame args the player uses for seq.
func (p *Player) Args(seq uint64) frame.Args {
	return frame.NewArgs(p.sourceID, seq, p.origin.Add(time.Duration(seq)*p.interval), p.interval)
}

// PlayString parses and plays one sequence.
func (p *Player) PlayString(sequence string) error {
	events, err := Parse(sequence)
	if err != nil {
		return err
	}
	return p.Play(events)
}

// Play delivers events in order. The open impl frame and the last processed
// main frame are local to one call, so each call is an independent sequence.
// Play stops at the first event that cannot be delivered.
func (p *Player) Play(events []Event) error {
	var (
		currentFrame      uint64
		lastActivatedMain frame.Args
	)
	for i, e := range events {
		switch e.Op {
		case OpBeginImpl:
			currentFrame = e.Seq
			p.target.NotifyBeginImplFrame(p.Args(e.Seq))

		case OpBeginMain:
			p.target.NotifyBeginMainFrame(p.Args(e.Seq))

		case OpImplNoDamage:
			p.target.NotifyImplFrameCausedNoDamage(frame.NewAck(p.Args(e.Seq), false))

		case OpMainNoDamage:
			p.target.NotifyMainFrameCausedNoDamage(p.Args(e.Seq))

		case OpSubmit:
			if currentFrame == 0 {
				currentFrame = 1
			}
			args := p.Args(currentFrame)
			origin := args
			if e.HasMain {
				origin = p.Args(e.Main)
			}
			p.target.NotifySubmitFrame(uint32(e.Seq), e.MissingContent, frame.NewAck(args, true), origin)

		case OpFrameEnd:
			if e.Aux != 0 && lastActivatedMain.SequenceNumber != e.Aux {
				return fmt.Errorf("%w: event %d %s, last activated main is %d",
					ErrMainMismatch, i, e, lastActivatedMain.SequenceNumber)
			}
			p.target.NotifyFrameEnd(p.Args(e.Seq), lastActivatedMain)

		case OpMainProcessed:
			lastActivatedMain = p.Args(e.Seq)
			p.target.NotifyMainFrameProcessed(lastActivatedMain)

		case OpPresent:
			p.target.NotifyFramePresented(uint32(e.Seq), frame.Feedback{
				Timestamp: p.now(),
				Interval:  frame.DefaultInterval,
			})

		case OpPause:
			p.target.NotifyPauseFrameProduction()

		default:
			return fmt.Errorf("%w: event %d has unknown op %q", ErrSyntax, i, rune(e.Op))
		}
	}
	return nil
}
