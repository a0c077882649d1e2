package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kelotduongvidainhat/ams/internal/infrastructure/config"
	"github.com/kelotduongvidainhat/ams/internal/infrastructure/influxdb"
)

// fakeInflux answers the ping and write endpoints of the InfluxDB v2 API
// and records the line protocol it receives.
type fakeInflux struct {
	mu    sync.Mutex
	lines []string
	fail  bool
}

func (f *fakeInflux) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"name":"influxdb","status":"pass"}`) //nolint:errcheck // test server
	})
	mux.HandleFunc("/api/v2/write", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // test server
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.fail {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"code":"invalid","message":"rejected"}`) //nolint:errcheck // test server
			return
		}
		for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
			if line != "" {
				f.lines = append(f.lines, line)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (f *fakeInflux) waitForLines(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		f.mu.Lock()
		got := append([]string(nil), f.lines...)
		f.mu.Unlock()
		if len(got) >= n {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("received %d lines, want %d", len(got), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func startFakeInflux(t *testing.T) (*fakeInflux, config.InfluxDBConfig) {
	t.Helper()
	fake := &fakeInflux{}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	return fake, config.InfluxDBConfig{
		Enabled:       true,
		URL:           srv.URL,
		Token:         "ams-test-token",
		Org:           "ams",
		Bucket:        "transfers",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func connect(t *testing.T, cfg config.InfluxDBConfig) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	_, cfg := startFakeInflux(t)
	client := connect(t, cfg)

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_Disabled(t *testing.T) {
	_, cfg := startFakeInflux(t)
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := config.InfluxDBConfig{Enabled: true, URL: "http://127.0.0.1:59999"}

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	_, cfg := startFakeInflux(t)
	cfg.BatchSize = -5
	cfg.FlushInterval = 0

	client := connect(t, cfg)
	if !client.IsConnected() {
		t.Error("IsConnected() = false with defaulted batch settings")
	}
}

func TestHealthCheck_Cancelled(t *testing.T) {
	_, cfg := startFakeInflux(t)
	client := connect(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() should return error for cancelled context")
	}
}

// =============================================================================
// Write Tests
// =============================================================================

func TestWriteTransferEvent(t *testing.T) {
	fake, cfg := startFakeInflux(t)
	client := connect(t, cfg)

	at := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)
	client.WriteTransferEvent(influxdb.TransferEventPoint{
		EventType: "TransferExecuted",
		AssetID:   "asset101",
		Status:    "EXECUTED",
		Approvals: 1,
		Pending:   90 * time.Second,
		At:        at,
	})
	client.Flush()

	lines := fake.waitForLines(t, 1)
	line := lines[0]
	for _, want := range []string{
		"transfer_events,",
		"asset_id=asset101",
		"event=TransferExecuted",
		"status=EXECUTED",
		"approvals=1i",
		"count=1i",
		"pending_seconds=90",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
	if !strings.HasSuffix(line, " 1768208400000000000") {
		t.Errorf("line %q does not carry the event timestamp", line)
	}
}

func TestWritePoint(t *testing.T) {
	fake, cfg := startFakeInflux(t)
	client := connect(t, cfg)

	client.WritePoint("api_requests",
		map[string]string{"route": "initiate"},
		map[string]interface{}{"duration_ms": 12.5})
	client.Flush()

	lines := fake.waitForLines(t, 1)
	if !strings.HasPrefix(lines[0], "api_requests,route=initiate duration_ms=12.5") {
		t.Errorf("line = %q", lines[0])
	}
}

func TestWriteErrorsReachCallback(t *testing.T) {
	fake, cfg := startFakeInflux(t)
	fake.fail = true
	client := connect(t, cfg)

	errs := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case errs <- err:
		default:
		}
	})

	client.WriteTransferEvent(influxdb.TransferEventPoint{EventType: "TransferRejected", AssetID: "asset101"})
	client.Flush()

	select {
	case err := <-errs:
		if err == nil {
			t.Error("callback received nil error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("write error not delivered to callback")
	}
}

// =============================================================================
// Close Tests
// =============================================================================

func TestClose(t *testing.T) {
	fake, cfg := startFakeInflux(t)
	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	client.WriteTransferEvent(influxdb.TransferEventPoint{EventType: "TransferInitiated", AssetID: "asset101"})
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	fake.waitForLines(t, 1)

	// Writes after close are dropped, and Flush is a no-op.
	client.WriteTransferEvent(influxdb.TransferEventPoint{EventType: "TransferInitiated", AssetID: "asset102"})
	client.Flush()
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}
}

func TestClose_ZeroValue(t *testing.T) {
	var client influxdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}
