package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete sysinfo configuration
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	Output    OutputConfig    `mapstructure:"output"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Watch     WatchConfig     `mapstructure:"watch"`
	NATS      NATSConfig      `mapstructure:"nats"`
}

// LoggingConfig controls the zap logger
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // empty = console only
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// InventoryConfig controls collection behaviour
type InventoryConfig struct {
	SubprocessTimeout time.Duration `mapstructure:"subprocess_timeout"`
	ProcessLimit      int           `mapstructure:"process_limit"`
}

// OutputConfig controls where reports are written
type OutputConfig struct {
	ReportPath   string `mapstructure:"report_path"`
	TextfilePath string `mapstructure:"textfile_path"` // empty = no Prometheus export
}

// AssistantConfig controls the chat-completion endpoint used by transmit
type AssistantConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	Model           string        `mapstructure:"model"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	APIVersion      string        `mapstructure:"api_version"`
	APIKey          string        `mapstructure:"api_key"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxPayloadBytes int           `mapstructure:"max_payload_bytes"`
	DefaultPrompt   string        `mapstructure:"default_prompt"`
}

// WatchConfig controls periodic collection
type WatchConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// NATSConfig controls report publishing and remote commands
type NATSConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URLs          []string      `mapstructure:"urls"`
	DeviceID      string        `mapstructure:"device_id"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
	Auth          AuthConfig    `mapstructure:"auth"`
	TLS           TLSConfig     `mapstructure:"tls"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	DrainTimeout  time.Duration `mapstructure:"drain_timeout"`
}

// AuthConfig selects the NATS authentication method
type AuthConfig struct {
	Type      string `mapstructure:"type"` // none, creds, token, userpass
	CredsFile string `mapstructure:"creds_file"`
	Token     string `mapstructure:"token"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

// TLSConfig holds optional TLS material for the NATS connection
type TLSConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	CertFile           string `mapstructure:"cert_file"`
	KeyFile            string `mapstructure:"key_file"`
	CAFile             string `mapstructure:"ca_file"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

var (
	deviceIDPattern     = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	subjectTokenPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// Load reads configuration from file and environment.
// A missing file is not an error when configPath is empty; defaults apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SYSINFO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	} else {
		defaultPath := GetDefaultConfigPath()
		if _, err := os.Stat(defaultPath); err == nil {
			v.SetConfigFile(defaultPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", defaultPath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)

	v.SetDefault("inventory.subprocess_timeout", 30*time.Second)
	v.SetDefault("inventory.process_limit", 20)

	v.SetDefault("output.textfile_path", "")

	v.SetDefault("assistant.endpoint", "https://api.anthropic.com/v1/messages")
	v.SetDefault("assistant.model", "claude-sonnet-4-20250514")
	v.SetDefault("assistant.max_tokens", 1000)
	v.SetDefault("assistant.api_version", "2023-06-01")
	v.SetDefault("assistant.api_key", "")
	v.SetDefault("assistant.timeout", 60*time.Second)
	v.SetDefault("assistant.max_payload_bytes", 50000)
	v.SetDefault("assistant.default_prompt", "Analyze my system information and give me useful insights")

	v.SetDefault("watch.interval", time.Hour)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.urls", []string{"nats://localhost:4222"})
	v.SetDefault("nats.subject_prefix", "sysinfo")
	v.SetDefault("nats.auth.type", "none")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)
	v.SetDefault("nats.drain_timeout", 30*time.Second)

	UpdateConfigDefaults(v)

	if hostname, err := os.Hostname(); err == nil {
		v.SetDefault("nats.device_id", sanitizeDeviceID(hostname))
	}
}

// sanitizeDeviceID maps a hostname onto the device ID alphabet
func sanitizeDeviceID(hostname string) string {
	var b strings.Builder
	for _, r := range hostname {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

// Upper bounds fixed by the report format
const (
	maxProcessLimit = 20
	maxPayloadBytes = 50000
)

func validate(cfg *Config) error {
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", cfg.Logging.Level)
	}

	if cfg.Logging.File != "" {
		if cfg.Logging.MaxSizeMB <= 0 {
			return fmt.Errorf("logging.max_size_mb must be positive")
		}
		if cfg.Logging.MaxBackups < 0 {
			return fmt.Errorf("logging.max_backups must not be negative")
		}
	}

	if cfg.Inventory.SubprocessTimeout < time.Second {
		return fmt.Errorf("inventory.subprocess_timeout must be at least 1 second")
	}
	if cfg.Inventory.SubprocessTimeout > 5*time.Minute {
		return fmt.Errorf("inventory.subprocess_timeout must not exceed 5 minutes")
	}
	if cfg.Inventory.ProcessLimit <= 0 {
		return fmt.Errorf("inventory.process_limit must be positive")
	}
	if cfg.Inventory.ProcessLimit > maxProcessLimit {
		return fmt.Errorf("inventory.process_limit must not exceed %d", maxProcessLimit)
	}

	if cfg.Output.ReportPath == "" {
		return fmt.Errorf("output.report_path is required")
	}

	if err := validateAssistant(&cfg.Assistant); err != nil {
		return err
	}

	if cfg.Watch.Interval < time.Minute {
		return fmt.Errorf("watch.interval must be at least 1 minute")
	}

	if cfg.NATS.Enabled {
		if err := validateNATS(&cfg.NATS); err != nil {
			return err
		}
	}

	return nil
}

func validateAssistant(cfg *AssistantConfig) error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("assistant.endpoint is required")
	}
	if !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://") {
		return fmt.Errorf("assistant.endpoint must be an http(s) URL")
	}
	if cfg.Model == "" {
		return fmt.Errorf("assistant.model is required")
	}
	if cfg.MaxTokens <= 0 {
		return fmt.Errorf("assistant.max_tokens must be positive")
	}
	if cfg.MaxPayloadBytes <= 0 {
		return fmt.Errorf("assistant.max_payload_bytes must be positive")
	}
	if cfg.MaxPayloadBytes > maxPayloadBytes {
		return fmt.Errorf("assistant.max_payload_bytes must not exceed %d", maxPayloadBytes)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("assistant.timeout must be positive")
	}
	return nil
}

func validateNATS(cfg *NATSConfig) error {
	if cfg.DeviceID == "" {
		return fmt.Errorf("nats.device_id is required")
	}
	if !deviceIDPattern.MatchString(cfg.DeviceID) {
		return fmt.Errorf("nats.device_id must contain only alphanumeric characters, dashes, and underscores")
	}

	if err := validateSubjectPrefix(cfg.SubjectPrefix); err != nil {
		return err
	}

	if len(cfg.URLs) == 0 {
		return fmt.Errorf("nats.urls must contain at least one server")
	}

	switch cfg.Auth.Type {
	case "none":
	case "creds":
		if cfg.Auth.CredsFile == "" {
			return fmt.Errorf("nats.auth.creds_file is required for creds auth")
		}
	case "token":
		if cfg.Auth.Token == "" {
			return fmt.Errorf("nats.auth.token is required for token auth")
		}
	case "userpass":
		if cfg.Auth.Username == "" || cfg.Auth.Password == "" {
			return fmt.Errorf("nats.auth username and password are required for userpass auth")
		}
	default:
		return fmt.Errorf("invalid auth type: %s", cfg.Auth.Type)
	}

	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile != "" && cfg.TLS.KeyFile == "" {
			return fmt.Errorf("nats.tls.key_file is required when cert_file is set")
		}
		if cfg.TLS.KeyFile != "" && cfg.TLS.CertFile == "" {
			return fmt.Errorf("nats.tls.cert_file is required when key_file is set")
		}
		if cfg.TLS.CertFile != "" {
			if _, err := os.Stat(cfg.TLS.CertFile); err != nil {
				return fmt.Errorf("certificate file not found: %s", cfg.TLS.CertFile)
			}
		}
		if cfg.TLS.KeyFile != "" {
			if _, err := os.Stat(cfg.TLS.KeyFile); err != nil {
				return fmt.Errorf("key file not found: %s", cfg.TLS.KeyFile)
			}
		}
		if cfg.TLS.CAFile != "" {
			if _, err := os.Stat(cfg.TLS.CAFile); err != nil {
				return fmt.Errorf("CA file not found: %s", cfg.TLS.CAFile)
			}
		}
	}

	if cfg.DrainTimeout <= 0 {
		return fmt.Errorf("nats.drain_timeout must be positive")
	}

	return nil
}

// validateSubjectPrefix checks a dot-separated NATS subject prefix
func validateSubjectPrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("nats.subject_prefix is required")
	}
	if len(prefix) > 50 {
		return fmt.Errorf("nats.subject_prefix must not exceed 50 characters")
	}
	if strings.HasPrefix(prefix, ".") || strings.HasSuffix(prefix, ".") {
		return fmt.Errorf("nats.subject_prefix cannot start or end with a dot")
	}
	if strings.Contains(prefix, "..") {
		return fmt.Errorf("nats.subject_prefix: consecutive dots not allowed")
	}
	for _, token := range strings.Split(prefix, ".") {
		if !subjectTokenPattern.MatchString(token) {
			return fmt.Errorf("nats.subject_prefix token %q contains invalid characters", token)
		}
	}
	return nil
}
