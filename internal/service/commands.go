package service

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/e7canasta/framesequence/internal/metrics"
	"github.com/e7canasta/framesequence/internal/replay"
)

// Command represents a control plane command
type Command struct {
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response represents a command response
type Response struct {
	CommandAck string                 `json:"command_ack"`
	Status     string                 `json:"status"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Timestamp  string                 `json:"timestamp"`
}

const (
	statusSuccess = "success"
	statusError   = "error"
)

// handle executes cmd. It runs on the command loop only.
func (s *Service) handle(cmd Command) Response {
	resp := Response{
		CommandAck: cmd.Command,
		Status:     statusSuccess,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
	}

	data, err := s.execute(cmd)
	if err != nil {
		resp.Status = statusError
		resp.Error = err.Error()
		slog.Warn("command failed", "command", cmd.Command, "error", err)
		return resp
	}
	resp.Data = data
	slog.Debug("command executed", "command", cmd.Command)
	return resp
}

func (s *Service) execute(cmd Command) (map[string]interface{}, error) {
	switch cmd.Command {
	case "start_sequence":
		t, err := trackerTypeParam(cmd.Params)
		if err != nil {
			return nil, err
		}
		thread, err := metrics.ParseThreadType(stringParam(cmd.Params, "thread"))
		if err != nil {
			return nil, err
		}
		if err := s.driver.Start(t, thread); err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"type":         t.String(),
			"active_types": uint32(s.collection.ActiveTypes()),
		}, nil

	case "stop_sequence":
		t, err := trackerTypeParam(cmd.Params)
		if err != nil {
			return nil, err
		}
		if err := s.driver.Stop(t); err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"type":     t.String(),
			"trackers": s.collection.Stats(),
		}, nil

	case "start_custom", "stop_custom":
		id, err := intParam(cmd.Params, "id")
		if err != nil {
			return nil, err
		}
		if cmd.Command == "start_custom" {
			err = s.driver.StartCustom(id)
		} else {
			err = s.driver.StopCustom(id)
		}
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"id": id, "trackers": s.collection.Stats()}, nil

	case "replay":
		return s.replay(cmd.Params)

	case "clear_all":
		s.collection.ClearAll()
		return map[string]interface{}{"trackers": s.collection.Stats()}, nil

	case "get_status":
		s.refresh()
		return map[string]interface{}{"status": s.Status()}, nil
	}
	return nil, fmt.Errorf("unknown command: %s", cmd.Command)
}

// replay plays either one sequence string or a multi-line script.
func (s *Service) replay(params map[string]interface{}) (map[string]interface{}, error) {
	if script := stringParam(params, "script"); script != "" {
		steps, err := replay.ParseScript(strings.NewReader(script))
		if err != nil {
			return nil, err
		}
		if err := replay.RunScript(s.driver, steps, s.replayOptions()...); err != nil {
			return nil, err
		}
		return map[string]interface{}{"steps": len(steps), "trackers": s.collection.Stats()}, nil
	}

	sequence := stringParam(params, "sequence")
	if sequence == "" {
		return nil, fmt.Errorf("missing 'sequence' or 'script' parameter")
	}
	events, err := replay.Parse(sequence)
	if err != nil {
		return nil, err
	}
	if err := s.player.Play(events); err != nil {
		return nil, err
	}
	return map[string]interface{}{"events": len(events), "trackers": s.collection.Stats()}, nil
}

func trackerTypeParam(params map[string]interface{}) (metrics.TrackerType, error) {
	name := stringParam(params, "type")
	if name == "" {
		return 0, fmt.Errorf("missing 'type' parameter")
	}
	return metrics.ParseTrackerType(name)
}

func stringParam(params map[string]interface{}, name string) string {
	v, _ := params[name].(string)
	return v
}

// intParam accepts JSON numbers, Go ints and numeric strings.
func intParam(params map[string]interface{}, name string) (int, error) {
	switch v := params[name].(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("'%s' must be an integer, got %v", name, v)
		}
		return int(v), nil
	case int:
		return v, nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("'%s' must be an integer, got %q", name, v)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("missing '%s' parameter", name)
	}
	return 0, fmt.Errorf("invalid '%s' parameter", name)
}
