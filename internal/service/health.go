package service

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/e7canasta/framesequence/internal/tracker"
)

// ProcessStats describes the daemon process
type ProcessStats struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Goroutines int     `json:"goroutines"`
}

// HealthStatus represents the health state of the service
type HealthStatus struct {
	Status        string        `json:"status"` // "healthy", "degraded", "unhealthy"
	SessionID     string        `json:"session_id"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Running       bool          `json:"running"`
	MQTTEnabled   bool          `json:"mqtt_enabled"`
	MQTTConnected bool          `json:"mqtt_connected"`
	ActiveTypes   uint32        `json:"active_types"`
	Trackers      tracker.Stats `json:"trackers"`
	Process       *ProcessStats `json:"process,omitempty"`
}

// HealthCheck returns the current health status of the service
func (s *Service) HealthCheck() HealthStatus {
	st := s.Status()
	health := HealthStatus{
		Status:        "healthy",
		SessionID:     s.sessionID,
		UptimeSeconds: st.UptimeSeconds,
		Running:       s.IsRunning(),
		MQTTEnabled:   s.mqtt != nil,
		ActiveTypes:   st.ActiveTypes,
		Trackers:      st.Trackers,
		Process:       processStats(),
	}
	if s.mqtt != nil {
		health.MQTTConnected = s.mqtt.Stats().Connected
	}

	switch {
	case !health.Running:
		health.Status = "unhealthy"
	case health.MQTTEnabled && !health.MQTTConnected:
		health.Status = "degraded"
	}
	return health
}

// processStats samples the current process. It returns nil when the
// platform does not expose the figures.
func processStats() *ProcessStats {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		slog.Debug("process stats unavailable", "error", err)
		return nil
	}
	stats := &ProcessStats{
		PID:        p.Pid,
		Goroutines: runtime.NumGoroutine(),
	}
	if mem, err := p.MemoryInfo(); err == nil {
		stats.RSSBytes = mem.RSS
	}
	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	return stats
}

// LivenessHandler handles /health endpoint (simple liveness check)
func (s *Service) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     "alive",
		"session_id": s.sessionID,
		"uptime":     int64(time.Since(s.started).Seconds()),
	})
}

// ReadinessHandler handles /readiness endpoint. Degraded is still ready.
func (s *Service) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := s.HealthCheck()
	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(health)
}

// StatusHandler handles /status with the full collection state
func (s *Service) StatusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(s.Status())
}

// Handler serves the health, status and metrics endpoints
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.LivenessHandler)
	mux.HandleFunc("/readiness", s.ReadinessHandler)
	mux.HandleFunc("/status", s.StatusHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

// StartHealthServer starts the HTTP health check server on the given port.
// It does not block.
func (s *Service) StartHealthServer(port string) error {
	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("starting health check server",
		"port", port,
		"endpoints", []string{"/health", "/readiness", "/status", "/metrics"},
	)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health check server failed", "error", err)
		}
	}()

	return nil
}
