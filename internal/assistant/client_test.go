package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stone-age-io/sysinfo/internal/config"
	"github.com/stone-age-io/sysinfo/internal/inventory"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

func testConfig(endpoint string) config.AssistantConfig {
	return config.AssistantConfig{
		Endpoint:        endpoint,
		Model:           "test-model",
		MaxTokens:       1000,
		APIVersion:      "2023-06-01",
		Timeout:         5 * time.Second,
		MaxPayloadBytes: DefaultMaxPayloadBytes,
	}
}

func smallReport() *inventory.Report {
	return &inventory.Report{
		System:    &inventory.SystemInfo{OS: "Linux", OSVersion: "24.04", Architecture: [2]string{"64bit", "ELF"}},
		Hardware:  &inventory.HardwareInfo{CPUCount: 2, Memory: &inventory.MemoryInfo{Total: 1 << 30}},
		Programs:  []inventory.Program{{Manager: "dpkg", Output: "ii bash"}},
		Network:   &inventory.NetworkInfo{Interfaces: []inventory.Interface{}},
		Processes: []inventory.ProcessEntry{{Name: "init"}},
	}
}

func largeReport() *inventory.Report {
	r := smallReport()
	r.Programs = nil
	for i := 0; i < 20; i++ {
		r.Programs = append(r.Programs, inventory.Program{Manager: "dpkg", Output: strings.Repeat("x", 5000)})
	}
	return r
}

func TestBuildPayload(t *testing.T) {
	c := NewClient(testConfig("http://unused"), zap.NewNop())

	t.Run("small report sent verbatim", func(t *testing.T) {
		payload, reduced, err := c.BuildPayload(smallReport())
		if err != nil {
			t.Fatalf("BuildPayload() error: %v", err)
		}
		if reduced {
			t.Error("small report was reduced")
		}
		if !gjson.GetBytes(payload, "programs.0.output").Exists() {
			t.Errorf("payload is not the full report: %s", payload)
		}
	})

	t.Run("large report reduced", func(t *testing.T) {
		payload, reduced, err := c.BuildPayload(largeReport())
		if err != nil {
			t.Fatalf("BuildPayload() error: %v", err)
		}
		if !reduced {
			t.Fatal("large report was not reduced")
		}
		if len(payload) > DefaultMaxPayloadBytes {
			t.Errorf("reduced payload is %d bytes", len(payload))
		}

		parsed := gjson.ParseBytes(payload)
		if parsed.Get("programs_count").Int() != 20 {
			t.Errorf("programs_count = %v, want 20", parsed.Get("programs_count"))
		}
		if parsed.Get("processes_count").Int() != 1 {
			t.Errorf("processes_count = %v, want 1", parsed.Get("processes_count"))
		}
		if parsed.Get("system.os").String() != "Linux" || !parsed.Get("hardware.cpu_count").Exists() {
			t.Error("reduced payload lost system or hardware")
		}
		if parsed.Get("note").String() == "" {
			t.Error("reduced payload has no note")
		}
		if parsed.Get("programs").Exists() {
			t.Error("reduced payload still carries the program list")
		}
	})

	t.Run("threshold counts indented bytes", func(t *testing.T) {
		full, err := inventory.Marshal(smallReport())
		if err != nil {
			t.Fatal(err)
		}

		cfg := testConfig("http://unused")
		cfg.MaxPayloadBytes = len(full)
		if _, reduced, _ := NewClient(cfg, zap.NewNop()).BuildPayload(smallReport()); reduced {
			t.Error("report at exactly the limit was reduced")
		}

		cfg.MaxPayloadBytes = len(full) - 1
		if _, reduced, _ := NewClient(cfg, zap.NewNop()).BuildPayload(smallReport()); !reduced {
			t.Error("report one byte over the limit was not reduced")
		}
	})

	t.Run("configured limit is capped", func(t *testing.T) {
		cfg := testConfig("http://unused")
		cfg.MaxPayloadBytes = 10 * DefaultMaxPayloadBytes
		payload, reduced, err := NewClient(cfg, zap.NewNop()).BuildPayload(largeReport())
		if err != nil {
			t.Fatalf("BuildPayload() error: %v", err)
		}
		if !reduced || len(payload) > DefaultMaxPayloadBytes {
			t.Errorf("reduced = %v, len = %d; a raised limit let a large report through", reduced, len(payload))
		}
	})

	t.Run("nil report", func(t *testing.T) {
		if _, _, err := c.BuildPayload(nil); !errors.Is(err, inventory.ErrNotCollected) {
			t.Errorf("BuildPayload(nil) error = %v, want ErrNotCollected", err)
		}
	})
}

func TestTransmit(t *testing.T) {
	var gotHeaders http.Header
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"msg_1","content":[{"type":"text","text":"Your disk is nearly full."}]}`)
	}))
	defer server.Close()

	c := NewClient(testConfig(server.URL), zap.NewNop())
	text, err := c.Transmit(context.Background(), "secret-key", "What should I clean up?", smallReport())
	if err != nil {
		t.Fatalf("Transmit() error: %v", err)
	}
	if text != "Your disk is nearly full." {
		t.Errorf("Transmit() = %q", text)
	}

	if gotHeaders.Get("x-api-key") != "secret-key" {
		t.Errorf("x-api-key = %q", gotHeaders.Get("x-api-key"))
	}
	if gotHeaders.Get("anthropic-version") != "2023-06-01" {
		t.Errorf("anthropic-version = %q", gotHeaders.Get("anthropic-version"))
	}
	if gotHeaders.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", gotHeaders.Get("Content-Type"))
	}

	var req request
	if err := json.Unmarshal(gotBody, &req); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	if req.Model != "test-model" || req.MaxTokens != 1000 {
		t.Errorf("request = %+v", req)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Fatalf("messages = %+v", req.Messages)
	}
	content := req.Messages[0].Content
	if !strings.HasPrefix(content, "What should I clean up?\n\nSystem information:\n{") {
		t.Errorf("content prefix = %q", content[:60])
	}
}

func TestTransmitErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":{"message":"invalid x-api-key"}}`},
		{name: "server error", status: http.StatusInternalServerError, body: "boom"},
		{name: "no content", status: http.StatusOK, body: `{"content":[]}`, wantErr: ErrEmptyResponse},
		{name: "non-text content", status: http.StatusOK, body: `{"content":[{"type":"tool_use","input":{}}]}`, wantErr: ErrEmptyResponse},
		{name: "not json", status: http.StatusOK, body: "<html>", wantErr: ErrEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			c := NewClient(testConfig(server.URL), zap.NewNop())
			_, err := c.Transmit(context.Background(), "key", "prompt", smallReport())
			if err == nil {
				t.Fatal("Transmit() should fail")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Transmit() error = %v, want %v", err, tt.wantErr)
			}
			if calls != 1 {
				t.Errorf("endpoint called %d times, want exactly 1", calls)
			}
		})
	}
}

func TestTransmitMissingKey(t *testing.T) {
	c := NewClient(testConfig("http://127.0.0.1:1"), zap.NewNop())
	if _, err := c.Transmit(context.Background(), "  ", "prompt", smallReport()); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Transmit() error = %v, want ErrMissingAPIKey", err)
	}
}

func TestTransmitUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewClient(testConfig(url), zap.NewNop())
	if _, err := c.Transmit(context.Background(), "key", "prompt", smallReport()); err == nil {
		t.Error("Transmit() to a closed server should fail")
	}
}
