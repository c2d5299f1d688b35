package nats

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stone-age-io/sysinfo/internal/inventory"
	"go.uber.org/zap"
)

// ReportSource exposes the most recent successful collection
type ReportSource interface {
	Latest() (report *inventory.Report, collectedAt time.Time, ok bool)
}

// Subscriber is the part of Client used to register handlers
type Subscriber interface {
	Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error)
}

// Subject returns "<prefix>.<deviceID>.<suffix>"
func Subject(prefix, deviceID, suffix string) string {
	return fmt.Sprintf("%s.%s.%s", prefix, deviceID, suffix)
}

// CommandHandlers answers inventory requests for one device
type CommandHandlers struct {
	logger        *zap.Logger
	deviceID      string
	subjectPrefix string
	source        ReportSource
	version       string

	respond func(msg *nats.Msg, data []byte) error
}

// NewCommandHandlers creates the handler set
func NewCommandHandlers(logger *zap.Logger, subjectPrefix, deviceID, version string, source ReportSource) *CommandHandlers {
	return &CommandHandlers{
		logger:        logger,
		deviceID:      deviceID,
		subjectPrefix: subjectPrefix,
		source:        source,
		version:       version,
		respond: func(msg *nats.Msg, data []byte) error {
			return msg.Respond(data)
		},
	}
}

type pingResponse struct {
	Status    string `json:"status"`
	DeviceID  string `json:"device_id"`
	Version   string `json:"version,omitempty"`
	Timestamp string `json:"timestamp"`
}

type inventoryResponse struct {
	Status      string            `json:"status"`
	CollectedAt string            `json:"collected_at"`
	Report      *inventory.Report `json:"report"`
	Timestamp   string            `json:"timestamp"`
}

type summaryResponse struct {
	Status      string   `json:"status"`
	CollectedAt string   `json:"collected_at"`
	Lines       []string `json:"lines"`
	Timestamp   string   `json:"timestamp"`
}

type errorResponse struct {
	Status    string `json:"status"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// SubscribeAll registers the ping, inventory and summary commands
func (h *CommandHandlers) SubscribeAll(client Subscriber) error {
	commands := []struct {
		name    string
		handler func() interface{}
	}{
		{"ping", h.ping},
		{"inventory", h.latestReport},
		{"summary", h.latestSummary},
	}

	for _, cmd := range commands {
		subject := Subject(h.subjectPrefix, h.deviceID, "cmd."+cmd.name)
		if _, err := client.Subscribe(subject, h.handleWithRecovery(cmd.name, cmd.handler)); err != nil {
			return err
		}
	}
	return nil
}

// handleWithRecovery turns a response builder into a message handler.
// A panic in the builder is logged and answered with an error response.
func (h *CommandHandlers) handleWithRecovery(name string, build func() interface{}) nats.MsgHandler {
	return func(msg *nats.Msg) {
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("Panic recovered in command handler",
					zap.String("handler", name),
					zap.String("subject", msg.Subject),
					zap.Any("panic", r),
					zap.String("stack", string(debug.Stack())))
				h.reply(msg, newError(fmt.Sprintf("internal error: handler panicked: %v", r)))
			}
		}()

		h.logger.Debug("Received command", zap.String("command", name))
		h.reply(msg, build())
	}
}

func (h *CommandHandlers) reply(msg *nats.Msg, response interface{}) {
	data, err := json.Marshal(response)
	if err != nil {
		h.logger.Error("Failed to encode command response", zap.Error(err))
		return
	}
	if err := h.respond(msg, data); err != nil {
		h.logger.Warn("Failed to send command response",
			zap.String("subject", msg.Subject),
			zap.Error(err))
	}
}

func (h *CommandHandlers) ping() interface{} {
	return pingResponse{
		Status:    "pong",
		DeviceID:  h.deviceID,
		Version:   h.version,
		Timestamp: now(),
	}
}

func (h *CommandHandlers) latestReport() interface{} {
	report, at, ok := h.source.Latest()
	if !ok {
		return newError(inventory.ErrNotCollected.Error())
	}
	return inventoryResponse{
		Status:      "success",
		CollectedAt: at.UTC().Format(time.RFC3339),
		Report:      report,
		Timestamp:   now(),
	}
}

func (h *CommandHandlers) latestSummary() interface{} {
	report, at, ok := h.source.Latest()
	if !ok {
		return newError(inventory.ErrNotCollected.Error())
	}
	s, err := inventory.Summarize(report)
	if err != nil {
		return newError(err.Error())
	}
	return summaryResponse{
		Status:      "success",
		CollectedAt: at.UTC().Format(time.RFC3339),
		Lines:       s.Lines(),
		Timestamp:   now(),
	}
}

func newError(msg string) errorResponse {
	return errorResponse{
		Status:    "error",
		Error:     msg,
		Timestamp: now(),
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
