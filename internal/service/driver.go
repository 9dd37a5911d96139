package service

import (
	"fmt"

	"github.com/e7canasta/framesequence/internal/metrics"
	"github.com/e7canasta/framesequence/internal/tracker"
)

// Driver adapts a Collection to replay.Controller so scripts and replay
// commands can start and stop sequences.
type Driver struct {
	*tracker.Collection
}

// Start starts a sequence. Scroll types without a thread are compositor
// driven.
func (d Driver) Start(t metrics.TrackerType, thread metrics.ThreadType) error {
	if err := checkType(t); err != nil {
		return err
	}
	if !t.IsScroll() {
		d.StartSequence(t)
		return nil
	}
	switch thread {
	case metrics.ThreadUnknown:
		thread = metrics.ThreadCompositor
	case metrics.ThreadCompositor, metrics.ThreadMain:
	default:
		return fmt.Errorf("scroll sequence %s cannot be driven by %s", t, thread)
	}
	d.StartScrollSequence(t, thread)
	return nil
}

func (d Driver) Stop(t metrics.TrackerType) error {
	if err := checkType(t); err != nil {
		return err
	}
	d.StopSequence(t)
	return nil
}

func (d Driver) StartCustom(id int) error {
	d.StartCustomSequence(id)
	return nil
}

func (d Driver) StopCustom(id int) error {
	d.StopCustomSequence(id)
	return nil
}

func checkType(t metrics.TrackerType) error {
	if !t.Valid() {
		return fmt.Errorf("invalid tracker type %d", int(t))
	}
	if t == metrics.Custom {
		return fmt.Errorf("custom sequences are started by id")
	}
	return nil
}
