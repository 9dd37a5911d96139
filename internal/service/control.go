package service

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/e7canasta/framesequence/internal/config"
)

// Client is the part of mqtt.Client the control plane uses.
type Client interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Executor runs commands. Service implements it.
type Executor interface {
	Submit(cmd Command, reply func(Response)) bool
}

// ControlHandler handles control plane commands
type ControlHandler struct {
	cfg      *config.Config
	client   Client
	executor Executor
}

// NewControlHandler creates a new control plane handler
func NewControlHandler(cfg *config.Config, client Client, executor Executor) *ControlHandler {
	return &ControlHandler{
		cfg:      cfg,
		client:   client,
		executor: executor,
	}
}

// Start subscribes to the control topic
func (h *ControlHandler) Start() error {
	topic := h.cfg.MQTT.Topics.Control
	qos := h.cfg.MQTT.QoS["control"]

	slog.Info("subscribing to control plane", "topic", topic, "qos", qos)

	token := h.client.Subscribe(topic, qos, h.messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("control plane subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control plane subscription failed: %w", err)
	}

	slog.Info("control plane handler started")
	return nil
}

// Stop unsubscribes from the control topic
func (h *ControlHandler) Stop() error {
	token := h.client.Unsubscribe(h.cfg.MQTT.Topics.Control)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("control plane unsubscribe timeout")
	}
	slog.Info("control plane handler stopped")
	return token.Error()
}

// messageHandler is called by the MQTT client for every control message
func (h *ControlHandler) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		slog.Error("failed to parse control command", "error", err)
		h.sendResponse(Response{
			CommandAck: "unknown",
			Status:     statusError,
			Error:      "invalid JSON",
		})
		return
	}

	slog.Info("control command received", "command", cmd.Command)

	if !h.executor.Submit(cmd, h.sendResponse) {
		h.sendResponse(Response{
			CommandAck: cmd.Command,
			Status:     statusError,
			Error:      "command queue full",
		})
	}
}

// sendResponse publishes a response on the responses topic
func (h *ControlHandler) sendResponse(resp Response) {
	if resp.Timestamp == "" {
		resp.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to marshal response", "error", err)
		return
	}

	topic := h.cfg.MQTT.Topics.Responses
	qos := h.cfg.MQTT.QoS["responses"]

	token := h.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		slog.Error("response publish timeout")
		return
	}
	if err := token.Error(); err != nil {
		slog.Error("failed to publish response", "error", err)
		return
	}

	slog.Debug("response sent", "command_ack", resp.CommandAck, "status", resp.Status)
}
