// Package framesequence measures the smoothness of interactions by tracking
// frame production against vsync-paced begin-frame opportunities.
//
// # Overview
//
// A frame sequence is one interaction (a scroll, an animation, a video) that
// is expected to produce a frame on every vsync. A Collection owns one tracker
// per active sequence and fans frame lifecycle notifications out to all of
// them:
//
//	begin impl frame -> begin main frame -> main frame processed
//	  -> submit (frame token) -> frame end -> presented (frame token)
//
// Each tracker counts, per thread, the frames that were expected and the
// frames that were actually presented. When a sequence ends or runs long
// enough, the counters are reported as the percentage of dropped frames.
//
// # Basic Usage
//
//	rec := framesequence.NewRecorder()
//	c := framesequence.NewCollection(framesequence.DefaultOptions(), rec)
//
//	c.StartScrollSequence(framesequence.TouchScroll, framesequence.ThreadCompositor)
//	c.NotifyBeginImplFrame(args)
//	c.NotifySubmitFrame(token, false, framesequence.NewAck(args, true), args)
//	c.NotifyFrameEnd(args, framesequence.Args{})
//	c.NotifyFramePresented(token, feedback)
//	c.StopSequence(framesequence.TouchScroll)
//
// # Replay
//
// Frame activity can be described in a compact text form and replayed:
//
//	p := framesequence.NewPlayer(c)
//	err := p.PlayString("b(1)B(0,1)s(1)S(1)e(1,0)P(1)")
//
// # Threading
//
// Collection and Tracker are driven from a single goroutine. Reporting sinks
// are safe for concurrent use.
package framesequence
