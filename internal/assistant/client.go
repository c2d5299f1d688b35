package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stone-age-io/sysinfo/internal/config"
	"github.com/stone-age-io/sysinfo/internal/inventory"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	// DefaultMaxPayloadBytes is the largest report sent verbatim, and the cap
	// on a configured limit
	DefaultMaxPayloadBytes = 50000

	reducedNote = "Data summarized because of its size. Save the report to a file for the complete data."

	// maxErrorBody bounds how much of a failed response is quoted in errors
	maxErrorBody = 512
)

var (
	// ErrMissingAPIKey is returned when transmit is called without a credential
	ErrMissingAPIKey = errors.New("api key is required")

	// ErrEmptyResponse is returned when the response carries no text content
	ErrEmptyResponse = errors.New("response contained no text content")
)

// Client sends inventory reports to a chat-completion endpoint
type Client struct {
	endpoint        string
	model           string
	maxTokens       int
	apiVersion      string
	maxPayloadBytes int
	httpClient      *http.Client
	logger          *zap.Logger
}

// NewClient creates a client from the assistant configuration
func NewClient(cfg config.AssistantConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxPayload := cfg.MaxPayloadBytes
	if maxPayload <= 0 || maxPayload > DefaultMaxPayloadBytes {
		maxPayload = DefaultMaxPayloadBytes
	}

	return &Client{
		endpoint:        cfg.Endpoint,
		model:           cfg.Model,
		maxTokens:       cfg.MaxTokens,
		apiVersion:      cfg.APIVersion,
		maxPayloadBytes: maxPayload,
		httpClient:      &http.Client{Timeout: timeout},
		logger:          logger,
	}
}

// reducedReport replaces the full report when it is too large to send
type reducedReport struct {
	System         *inventory.SystemInfo   `json:"system"`
	Hardware       *inventory.HardwareInfo `json:"hardware"`
	ProgramsCount  int                     `json:"programs_count"`
	ProcessesCount int                     `json:"processes_count"`
	Note           string                  `json:"note"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

// BuildPayload serializes the report for transmission.
// When the indented JSON is larger than the payload limit the reduced
// summary is returned instead and reduced is true.
func (c *Client) BuildPayload(report *inventory.Report) (payload []byte, reduced bool, err error) {
	if report == nil {
		return nil, false, inventory.ErrNotCollected
	}

	full, err := inventory.Marshal(report)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode report: %w", err)
	}
	if len(full) <= c.maxPayloadBytes {
		return full, false, nil
	}

	summary, err := inventory.Marshal(reducedReport{
		System:         report.System,
		Hardware:       report.Hardware,
		ProgramsCount:  len(report.Programs),
		ProcessesCount: len(report.Processes),
		Note:           reducedNote,
	})
	if err != nil {
		return nil, true, fmt.Errorf("failed to encode reduced report: %w", err)
	}
	return summary, true, nil
}

// Transmit sends the report with the prompt and returns the text of the
// first content block. Failures are returned without retry.
func (c *Client) Transmit(ctx context.Context, apiKey, prompt string, report *inventory.Report) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", ErrMissingAPIKey
	}

	payload, reduced, err := c.BuildPayload(report)
	if err != nil {
		return "", err
	}
	if reduced {
		c.logger.Info("Report exceeds payload limit, sending reduced summary",
			zap.Int("limit_bytes", c.maxPayloadBytes))
	}

	body, err := json.Marshal(request{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []message{{
			Role:    "user",
			Content: fmt.Sprintf("%s\n\nSystem information:\n%s", prompt, payload),
		}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey)
	if c.apiVersion != "" {
		req.Header.Set("anthropic-version", c.apiVersion)
	}

	c.logger.Debug("Transmitting report",
		zap.String("endpoint", c.endpoint),
		zap.String("model", c.model),
		zap.Int("payload_bytes", len(payload)),
		zap.Bool("reduced", reduced))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, quoteBody(respBody))
	}

	text := gjson.GetBytes(respBody, "content.0.text")
	if !text.Exists() || text.Type != gjson.String {
		return "", ErrEmptyResponse
	}

	return text.String(), nil
}

func quoteBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}
