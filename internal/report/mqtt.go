package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/e7canasta/framesequence/internal/config"
	"github.com/e7canasta/framesequence/internal/metrics"
)

// Publisher is the part of mqtt.Client the outbox needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Envelope is the JSON payload of a published sample.
type Envelope struct {
	ReportID   string                         `json:"report_id"`
	InstanceID string                         `json:"instance_id"`
	Kind       string                         `json:"kind"`
	Histogram  string                         `json:"histogram,omitempty"`
	Sequence   string                         `json:"sequence,omitempty"`
	Thread     string                         `json:"thread,omitempty"`
	Value      int64                          `json:"value"`
	Frames     uint32                         `json:"frames,omitempty"`
	Custom     map[int]metrics.ThroughputData `json:"custom,omitempty"`
	Timestamp  time.Time                      `json:"timestamp"`
}

type outboxMessage struct {
	topic   string
	qos     byte
	payload []byte
}

// MQTT publishes samples to a broker. Reports are queued in a bounded outbox
// drained by one goroutine, so reporting never blocks the tracking loop; a
// full outbox drops the sample and counts it.
type MQTT struct {
	cfg    *config.Config
	Client mqtt.Client // Exported for control plane

	outbox    chan outboxMessage
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	mu        sync.RWMutex
	connected bool
	published map[string]uint64 // count per topic
	dropped   uint64
	errors    uint64
}

// NewMQTT creates an MQTT sink. Call Connect, or Start with a publisher.
func NewMQTT(cfg *config.Config) *MQTT {
	size := cfg.MQTT.OutboxSize
	if size <= 0 {
		size = 64
	}
	return &MQTT{
		cfg:       cfg,
		outbox:    make(chan outboxMessage, size),
		done:      make(chan struct{}),
		published: make(map[string]uint64),
	}
}

// Connect establishes connection to the MQTT broker and starts the outbox.
func (m *MQTT) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", m.cfg.MQTT.Broker))
	opts.SetClientID(m.cfg.InstanceID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		m.setConnected(true)
		slog.Info("mqtt connection established",
			"broker", m.cfg.MQTT.Broker,
			"client_id", m.cfg.InstanceID,
			"auto_reconnect", "enabled")
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		m.setConnected(false)
		slog.Warn("mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", m.cfg.MQTT.Broker,
			"max_retry_interval", "30s")
	}

	m.Client = mqtt.NewClient(opts)

	slog.Info("connecting to mqtt broker", "broker", m.cfg.MQTT.Broker)

	token := m.Client.Connect()
	select {
	case <-token.Done():
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		return fmt.Errorf("mqtt connection cancelled: %w", ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	m.setConnected(true)
	m.Start(m.Client)
	return nil
}

// Start drains the outbox into pub. Only the first call has an effect.
func (m *MQTT) Start(pub Publisher) {
	m.startOnce.Do(func() {
		m.wg.Add(1)
		go m.drain(pub)
	})
}

func (m *MQTT) drain(pub Publisher) {
	defer m.wg.Done()
	for {
		select {
		case msg := <-m.outbox:
			m.publish(pub, msg)
		case <-m.done:
			// Flush what is already queued.
			for {
				select {
				case msg := <-m.outbox:
					m.publish(pub, msg)
				default:
					return
				}
			}
		}
	}
}

func (m *MQTT) publish(pub Publisher, msg outboxMessage) {
	token := pub.Publish(msg.topic, msg.qos, false, msg.payload)
	if !token.WaitTimeout(2 * time.Second) {
		m.countError()
		slog.Warn("mqtt publish timeout", "topic", msg.topic)
		return
	}
	if err := token.Error(); err != nil {
		m.countError()
		slog.Warn("mqtt publish failed", "topic", msg.topic, "error", err)
		return
	}

	m.mu.Lock()
	m.published[msg.topic]++
	m.mu.Unlock()

	slog.Debug("report published",
		"topic", msg.topic,
		"qos", msg.qos,
		"size", len(msg.payload),
	)
}

func (m *MQTT) ReportPercentDroppedFrames(thread metrics.ThreadType, t metrics.TrackerType, percent int) {
	m.enqueue(m.cfg.MQTT.Topics.Reports, "reports", Envelope{
		Kind:      "percent_dropped_frames",
		Histogram: metrics.ThroughputHistogramName(t, thread),
		Sequence:  t.String(),
		Thread:    thread.String(),
		Value:     int64(percent),
	})
}

func (m *MQTT) ReportFrameSequenceLength(t metrics.TrackerType, framesExpected uint64) {
	m.enqueue(m.cfg.MQTT.Topics.Reports, "reports", Envelope{
		Kind:      "frame_sequence_length",
		Histogram: metrics.FrameSequenceLengthHistogramName(t),
		Sequence:  t.String(),
		Value:     int64(framesExpected),
	})
}

func (m *MQTT) ReportCheckerboarding(t metrics.TrackerType, frames uint32, percent int) {
	m.enqueue(m.cfg.MQTT.Topics.Reports, "reports", Envelope{
		Kind:      "checkerboarding",
		Histogram: metrics.CheckerboardingHistogramName(t),
		Sequence:  t.String(),
		Value:     int64(percent),
		Frames:    frames,
	})
}

func (m *MQTT) ReportCustomResults(results map[int]metrics.ThroughputData) {
	custom := make(map[int]metrics.ThroughputData, len(results))
	for id, data := range results {
		custom[id] = data
	}
	m.enqueue(m.cfg.MQTT.Topics.Custom, "custom", Envelope{
		Kind:   "custom",
		Value:  int64(len(custom)),
		Custom: custom,
	})
}

func (m *MQTT) enqueue(topic, qosKey string, env Envelope) {
	env.ReportID = uuid.NewString()
	env.InstanceID = m.cfg.InstanceID
	env.Timestamp = time.Now()

	payload, err := json.Marshal(env)
	if err != nil {
		m.countError()
		slog.Error("failed to marshal report", "kind", env.Kind, "error", err)
		return
	}

	select {
	case m.outbox <- outboxMessage{topic: topic, qos: m.getQoS(qosKey), payload: payload}:
	default:
		m.mu.Lock()
		m.dropped++
		dropped := m.dropped
		m.mu.Unlock()
		slog.Warn("mqtt outbox full, dropping report",
			"kind", env.Kind,
			"report_id", env.ReportID,
			"dropped_total", dropped)
	}
}

// Close stops the outbox after flushing queued reports and disconnects.
func (m *MQTT) Close() error {
	m.stopOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
		if m.Client != nil && m.Client.IsConnected() {
			m.Client.Disconnect(250) // 250ms grace period
			slog.Info("mqtt disconnected")
		}
		m.setConnected(false)
	})
	return nil
}

// MQTTStats contains publisher statistics
type MQTTStats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Sent      uint64            `json:"sent"`
	Dropped   uint64            `json:"dropped"`
	Errors    uint64            `json:"errors"`
	Queued    int               `json:"queued"`
}

// Stats returns publisher statistics
func (m *MQTT) Stats() MQTTStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	published := make(map[string]uint64, len(m.published))
	var sent uint64
	for k, v := range m.published {
		published[k] = v
		sent += v
	}

	return MQTTStats{
		Connected: m.connected,
		Published: published,
		Sent:      sent,
		Dropped:   m.dropped,
		Errors:    m.errors,
		Queued:    len(m.outbox),
	}
}

func (m *MQTT) setConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

func (m *MQTT) countError() {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()
}

// getQoS returns the QoS level for a topic kind
func (m *MQTT) getQoS(kind string) byte {
	if qos, ok := m.cfg.MQTT.QoS[kind]; ok {
		return qos
	}
	return 0 // default QoS 0
}
