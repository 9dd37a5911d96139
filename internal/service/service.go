// Package service runs a tracker collection as a daemon: one goroutine owns
// the collection and executes commands that arrive from the MQTT control
// plane or from Go callers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/e7canasta/framesequence/internal/config"
	"github.com/e7canasta/framesequence/internal/metrics"
	"github.com/e7canasta/framesequence/internal/replay"
	"github.com/e7canasta/framesequence/internal/report"
	"github.com/e7canasta/framesequence/internal/tracker"
)

var (
	// ErrNotRunning is returned by Do when the command loop has exited.
	ErrNotRunning = errors.New("service: not running")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("service: already running")
	// ErrQueueFull is returned by Do when the command queue is full.
	ErrQueueFull = errors.New("service: command queue full")
)

const commandQueueSize = 16

type request struct {
	cmd   Command
	reply func(Response)
}

// Service owns one tracker collection and its reporting sinks.
type Service struct {
	cfg       *config.Config
	sessionID string
	started   time.Time

	collection *tracker.Collection
	driver     Driver
	player     *replay.Player
	sink       report.Tee
	recorder   *report.Recorder
	registry   *prometheus.Registry
	mqtt       *report.MQTT
	control    *ControlHandler
	server     *http.Server

	commands chan request
	done     chan struct{}

	mu       sync.RWMutex
	running  bool
	snapshot Status
}

// Status is the collection state published after every command.
type Status struct {
	SessionID     string                         `json:"session_id"`
	InstanceID    string                         `json:"instance_id"`
	UptimeSeconds int64                          `json:"uptime_seconds"`
	ActiveTypes   uint32                         `json:"active_types"`
	Trackers      tracker.Stats                  `json:"trackers"`
	Sequences     []tracker.Snapshot             `json:"sequences"`
	Histograms    int                            `json:"histograms"`
	MQTT          *report.MQTTStats              `json:"mqtt,omitempty"`
	UpdatedAt     time.Time                      `json:"updated_at"`
	Custom        map[int]metrics.ThroughputData `json:"custom,omitempty"`
}

// New builds a service from a validated configuration. Nothing runs until Run.
func New(cfg *config.Config) *Service {
	s := &Service{
		cfg:       cfg,
		sessionID: uuid.NewString(),
		started:   time.Now(),
		recorder:  report.NewRecorder(),
		registry:  prometheus.NewRegistry(),
		commands:  make(chan request, commandQueueSize),
		done:      make(chan struct{}),
	}

	s.registry.MustRegister(collectors.NewGoCollector())
	s.sink = report.Tee{
		s.recorder,
		report.NewLog(slog.Default(), slog.LevelDebug),
		report.NewPrometheus(s.registry),
	}
	if cfg.MQTTEnabled() {
		s.mqtt = report.NewMQTT(cfg)
		s.sink = append(s.sink, s.mqtt)
	}

	s.collection = tracker.NewCollection(cfg.TrackerOptions(), s.sink)
	s.collection.SetCustomTrackerResultsCallback(func(results tracker.CustomTrackerResults) {
		s.sink.ReportCustomResults(results)
	})
	s.driver = Driver{Collection: s.collection}
	s.player = replay.NewPlayer(s.driver, s.replayOptions()...)
	s.refresh()

	slog.Info("frame sequence service created",
		"instance_id", cfg.InstanceID,
		"session_id", s.sessionID,
		"mqtt_enabled", cfg.MQTTEnabled(),
		"single_threaded", cfg.Tracking.SingleThreaded,
	)
	return s
}

// SessionID identifies this process run.
func (s *Service) SessionID() string { return s.sessionID }

// Recorder returns the in-memory sink holding every reported sample.
func (s *Service) Recorder() *report.Recorder { return s.recorder }

// Registry returns the Prometheus registry served on /metrics.
func (s *Service) Registry() *prometheus.Registry { return s.registry }

// ShutdownTimeout returns the configured graceful shutdown budget.
func (s *Service) ShutdownTimeout() time.Duration { return s.cfg.ShutdownTimeout() }

func (s *Service) replayOptions() []replay.Option {
	return []replay.Option{
		replay.WithSourceID(s.cfg.Replay.SourceID),
		replay.WithInterval(s.cfg.ReplayInterval()),
	}
}

// Run connects the control plane when MQTT is configured and executes
// commands until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(s.done)
	}()

	if s.mqtt != nil {
		if err := s.mqtt.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect reports publisher: %w", err)
		}
		control := NewControlHandler(s.cfg, s.mqtt.Client, s)
		if err := control.Start(); err != nil {
			return fmt.Errorf("failed to start control plane: %w", err)
		}
		s.mu.Lock()
		s.control = control
		s.mu.Unlock()
	}

	slog.Info("frame sequence service running", "session_id", s.sessionID)

	for {
		select {
		case <-ctx.Done():
			slog.Info("command loop stopped", "reason", ctx.Err())
			return nil
		case req := <-s.commands:
			resp := s.handle(req.cmd)
			s.refresh()
			if req.reply != nil {
				req.reply(resp)
			}
		}
	}
}

// Submit queues cmd without blocking. reply is called from the command loop.
// It returns false when the queue is full.
func (s *Service) Submit(cmd Command, reply func(Response)) bool {
	select {
	case s.commands <- request{cmd: cmd, reply: reply}:
		return true
	default:
		slog.Warn("command queue full, dropping command", "command", cmd.Command)
		return false
	}
}

// Do executes cmd on the command loop and waits for its response.
func (s *Service) Do(ctx context.Context, cmd Command) (Response, error) {
	replies := make(chan Response, 1)
	if !s.Submit(cmd, func(r Response) { replies <- r }) {
		return Response{}, ErrQueueFull
	}
	select {
	case resp := <-replies:
		return resp, nil
	case <-s.done:
		return Response{}, ErrNotRunning
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Status returns the state captured after the last command.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.snapshot
	st.UptimeSeconds = int64(time.Since(s.started).Seconds())
	return st
}

// IsRunning reports whether the command loop is executing.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// refresh captures the collection state. It must run on the command loop, or
// before the loop starts.
func (s *Service) refresh() {
	st := Status{
		SessionID:   s.sessionID,
		InstanceID:  s.cfg.InstanceID,
		ActiveTypes: uint32(s.collection.ActiveTypes()),
		Trackers:    s.collection.Stats(),
		Sequences:   s.collection.Snapshots(),
		Histograms:  len(s.recorder.Names()),
		Custom:      s.recorder.CustomResults(),
		UpdatedAt:   time.Now(),
	}
	if s.mqtt != nil {
		stats := s.mqtt.Stats()
		st.MQTT = &stats
	}

	s.mu.Lock()
	s.snapshot = st
	s.mu.Unlock()
}

// Shutdown stops the control plane, flushes queued reports and stops the
// health server.
func (s *Service) Shutdown(ctx context.Context) error {
	var errs []error

	s.mu.RLock()
	control := s.control
	s.mu.RUnlock()
	if control != nil {
		if err := control.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if s.IsRunning() {
		select {
		case <-s.done:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("command loop did not stop: %w", ctx.Err()))
		}
	}

	if s.mqtt != nil {
		if err := s.mqtt.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("health server shutdown: %w", err))
		}
	}

	slog.Info("frame sequence service stopped",
		"session_id", s.sessionID,
		"uptime", time.Since(s.started).Round(time.Second))
	return errors.Join(errs...)
}
