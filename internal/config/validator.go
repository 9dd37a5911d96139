package config

import (
	"fmt"
	"regexp"
	"strings"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks if the configuration is valid and fills defaults
func Validate(cfg *Config) error {
	// Validate instance_id
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.ShutdownTimeoutS < 0 {
		return fmt.Errorf("shutdown_timeout_s must be >= 0")
	}
	if cfg.ShutdownTimeoutS == 0 {
		cfg.ShutdownTimeoutS = 5
	}

	if err := validateTracking(&cfg.Tracking); err != nil {
		return fmt.Errorf("tracking: %w", err)
	}

	// Validate replay config
	if cfg.Replay.IntervalMS < 0 {
		return fmt.Errorf("replay.interval_ms must be > 0")
	}
	if cfg.Replay.IntervalMS == 0 {
		cfg.Replay.IntervalMS = 16
	}
	if cfg.Replay.SourceID == 0 {
		cfg.Replay.SourceID = 1
	}

	if err := validateMQTT(cfg); err != nil {
		return err
	}

	if cfg.HTTP.Port == "" {
		cfg.HTTP.Port = "8080"
	}

	// Validate log config
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	switch cfg.Log.Level {
	case "":
		cfg.Log.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got '%s'", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "":
		cfg.Log.Format = "json"
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be 'json' or 'text', got '%s'", cfg.Log.Format)
	}

	return nil
}

func validateTracking(t *TrackingConfig) error {
	if t.ReportIntervalMS < 0 {
		return fmt.Errorf("report_interval_ms must be > 0")
	}
	if t.ReportIntervalMS == 0 {
		t.ReportIntervalMS = 5000
	}
	if t.TerminationGraceFrames == 0 {
		t.TerminationGraceFrames = 3
	}
	if t.MinFramesForThroughput == 0 {
		t.MinFramesForThroughput = 100
	}
	return nil
}

func validateMQTT(cfg *Config) error {
	if cfg.MQTT.OutboxSize < 0 {
		return fmt.Errorf("mqtt.outbox_size must be >= 0")
	}
	if cfg.MQTT.OutboxSize == 0 {
		cfg.MQTT.OutboxSize = 64
	}

	// Set default topics if not provided
	if cfg.MQTT.Topics.Control == "" {
		cfg.MQTT.Topics.Control = fmt.Sprintf("framesequence/control/%s", cfg.InstanceID)
	}
	if cfg.MQTT.Topics.Reports == "" {
		cfg.MQTT.Topics.Reports = fmt.Sprintf("framesequence/reports/%s", cfg.InstanceID)
	}
	if cfg.MQTT.Topics.Custom == "" {
		cfg.MQTT.Topics.Custom = fmt.Sprintf("framesequence/custom/%s", cfg.InstanceID)
	}
	if cfg.MQTT.Topics.Responses == "" {
		cfg.MQTT.Topics.Responses = fmt.Sprintf("framesequence/responses/%s", cfg.InstanceID)
	}

	// Set default QoS if not provided
	if cfg.MQTT.QoS == nil {
		cfg.MQTT.QoS = map[string]byte{
			"control":   1,
			"reports":   0,
			"custom":    1,
			"responses": 1,
		}
	}
	for name, qos := range cfg.MQTT.QoS {
		if qos > 2 {
			return fmt.Errorf("mqtt.qos.%s must be 0, 1 or 2, got %d", name, qos)
		}
	}

	return nil
}
