package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/e7canasta/framesequence/internal/config"
)

const testConfig = `
instance_id: test-sensor
tracking:
  min_frames_for_throughput: 1
`

func testServiceConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfig))
	if err != nil {
		t.Fatalf("config.Parse failed: %v", err)
	}
	return cfg
}

// startService runs a service until the test ends.
func startService(t *testing.T) *Service {
	t.Helper()
	s := New(testServiceConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errc:
			if err != nil {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Run did not return")
		}
	})
	return s
}

func do(t *testing.T, s *Service, command string, params map[string]interface{}) Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := s.Do(ctx, Command{Command: command, Params: params})
	if err != nil {
		t.Fatalf("%s: %v", command, err)
	}
	return resp
}

func mustSucceed(t *testing.T, resp Response) {
	t.Helper()
	if resp.Status != statusSuccess {
		t.Fatalf("%s failed: %s", resp.CommandAck, resp.Error)
	}
}

var errBroker = errors.New("broker unavailable")
