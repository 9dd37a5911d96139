package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/e7canasta/framesequence/internal/tracker"
)

// Config represents the complete framesequenced configuration
type Config struct {
	InstanceID       string         `yaml:"instance_id"`
	ShutdownTimeoutS int            `yaml:"shutdown_timeout_s"` // Graceful shutdown timeout in seconds (default: 5)
	Tracking         TrackingConfig `yaml:"tracking"`
	Replay           ReplayConfig   `yaml:"replay"`
	MQTT             MQTTConfig     `yaml:"mqtt"`
	HTTP             HTTPConfig     `yaml:"http"`
	Log              LogConfig      `yaml:"log"`
}

// TrackingConfig tunes the tracker collection
type TrackingConfig struct {
	ReportIntervalMS       int    `yaml:"report_interval_ms"`       // flush a running sequence after this long (default: 5000)
	TerminationGraceFrames uint32 `yaml:"termination_grace_frames"` // submissions a stopped tracker may see (default: 3)
	MinFramesForThroughput uint64 `yaml:"min_frames_for_throughput"`
	SingleThreaded         bool   `yaml:"single_threaded"`
}

// ReplayConfig configures sequence replay
type ReplayConfig struct {
	SourceID   uint64 `yaml:"source_id"`
	IntervalMS int    `yaml:"interval_ms"`
	Script     string `yaml:"script"` // optional script replayed at startup
}

// MQTTConfig contains MQTT broker settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker     string          `yaml:"broker"`
	Topics     MQTTTopics      `yaml:"topics"`
	QoS        map[string]byte `yaml:"qos"`
	OutboxSize int             `yaml:"outbox_size"`
}

// MQTTTopics contains topic names
type MQTTTopics struct {
	Control   string `yaml:"control"`
	Reports   string `yaml:"reports"`
	Custom    string `yaml:"custom"`
	Responses string `yaml:"responses"`
}

// HTTPConfig configures the health server
type HTTPConfig struct {
	Port string `yaml:"port"`
}

// LogConfig configures slog
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates YAML configuration
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// TrackerOptions converts the tracking section into collection options
func (c *Config) TrackerOptions() tracker.Options {
	return tracker.Options{
		TimeDeltaToReport:      time.Duration(c.Tracking.ReportIntervalMS) * time.Millisecond,
		TerminationGraceFrames: c.Tracking.TerminationGraceFrames,
		MinFramesForReporting:  c.Tracking.MinFramesForThroughput,
		SingleThreaded:         c.Tracking.SingleThreaded,
	}
}

// ReplayInterval is the vsync interval used by replays
func (c *Config) ReplayInterval() time.Duration {
	return time.Duration(c.Replay.IntervalMS) * time.Millisecond
}

// ShutdownTimeout is the graceful shutdown budget
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutS) * time.Second
}

// MQTTEnabled reports whether a broker is configured
func (c *Config) MQTTEnabled() bool {
	return c.MQTT.Broker != ""
}
