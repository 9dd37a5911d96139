package replay

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/e7canasta/framesequence/internal/metrics"
)

// StepKind names a script instruction.
type StepKind string

const (
	StepStart       StepKind = "start"
	StepStop        StepKind = "stop"
	StepStartCustom StepKind = "start_custom"
	StepStopCustom  StepKind = "stop_custom"
	StepPlay        StepKind = "play"
)

// Step is one line of a replay script.
type Step struct {
	Line   int
	Kind   StepKind
	Type   metrics.TrackerType
	Thread metrics.ThreadType
	ID     int
	Events []Event
}

// Controller is what a script drives: frame notifications plus sequence
// lifecycle.
type Controller interface {
	Notifier
	Start(t metrics.TrackerType, thread metrics.ThreadType) error
	Stop(t metrics.TrackerType) error
	StartCustom(id int) error
	StopCustom(id int) error
}

// ParseScript reads a line-oriented script:
//
//	# comment
//	start touch_scroll compositor
//	play b(1)s(1)e(1,0)P(1)
//	stop touch_scroll
//	start_custom 7
//	stop_custom 7
func ParseScript(r io.Reader) ([]Step, error) {
	var steps []Step
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		step, err := parseStep(line, text)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return steps, nil
}

func parseStep(line int, text string) (Step, error) {
	fields := strings.Fields(text)
	step := Step{Line: line, Kind: StepKind(fields[0])}
	args := fields[1:]

	switch step.Kind {
	case StepStart, StepStop:
		if len(args) < 1 || len(args) > 2 || (step.Kind == StepStop && len(args) != 1) {
			return Step{}, scriptError(line, "%s takes a tracker type", step.Kind)
		}
		t, err := metrics.ParseTrackerType(args[0])
		if err != nil {
			return Step{}, scriptError(line, "%v", err)
		}
		step.Type = t
		if len(args) == 2 {
			thread, err := metrics.ParseThreadType(args[1])
			if err != nil {
				return Step{}, scriptError(line, "%v", err)
			}
			step.Thread = thread
		} else if t.IsScroll() {
			step.Thread = metrics.ThreadCompositor
		}

	case StepStartCustom, StepStopCustom:
		if len(args) != 1 {
			return Step{}, scriptError(line, "%s takes an id", step.Kind)
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return Step{}, scriptError(line, "bad custom id %q", args[0])
		}
		step.ID = id

	case StepPlay:
		events, err := Parse(strings.Join(args, ""))
		if err != nil {
			return Step{}, fmt.Errorf("line %d: %w", line, err)
		}
		step.Events = events

	default:
		return Step{}, scriptError(line, "unknown step %q", fields[0])
	}
	return step, nil
}

func scriptError(line int, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrSyntax, line, fmt.Sprintf(format, args...))
}

// RunScript applies steps to c. Each play step is an independent sequence.
func RunScript(c Controller, steps []Step, opts ...Option) error {
	player := NewPlayer(c, opts...)
	for _, step := range steps {
		var err error
		switch step.Kind {
		case StepStart:
			err = c.Start(step.Type, step.Thread)
		case StepStop:
			err = c.Stop(step.Type)
		case StepStartCustom:
			err = c.StartCustom(step.ID)
		case StepStopCustom:
			err = c.StopCustom(step.ID)
		case StepPlay:
			err = player.Play(step.Events)
		}
		if err != nil {
			return fmt.Errorf("line %d %s: %w", step.Line, step.Kind, err)
		}
	}
	return nil
}
