package nats

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stone-age-io/sysinfo/internal/config"
	"go.uber.org/zap"
)

// clientName identifies this process in NATS server connection lists
const clientName = "sysinfo"

// Client wraps the NATS connection used to publish reports and answer
// commands
type Client struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *zap.Logger
}

// NewClient connects to NATS and validates that JetStream is available
func NewClient(cfg config.NATSConfig, logger *zap.Logger) (*Client, error) {
	opts, err := connectOptions(cfg, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Connecting to NATS", zap.Strings("urls", cfg.URLs))
	conn, err := nats.Connect(strings.Join(cfg.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("Connected to NATS",
		zap.String("url", conn.ConnectedUrl()),
		zap.String("server_id", conn.ConnectedServerId()),
		zap.Bool("tls", conn.TLSRequired()))

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	// Fail at startup rather than on the first published report
	if _, err := js.AccountInfo(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("JetStream not available on NATS server (is JetStream enabled?): %w", err)
	}

	return &Client{
		conn:   conn,
		js:     js,
		logger: logger,
	}, nil
}

// connectOptions translates the configuration into connection options
func connectOptions(cfg config.NATSConfig, logger *zap.Logger) ([]nats.Option, error) {
	opts := []nats.Option{
		nats.Name(clientName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
				return
			}
			logger.Info("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("NATS error", zap.Error(err), zap.String("subject", subject))
		}),
	}

	if cfg.TLS.Enabled {
		tlsConfig, err := newTLSConfig(cfg.TLS, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsConfig))

		if cfg.TLS.InsecureSkipVerify {
			logger.Warn("TLS certificate verification is disabled")
		}
	}

	switch cfg.Auth.Type {
	case "creds":
		logger.Info("Using credentials file authentication", zap.String("file", cfg.Auth.CredsFile))
		opts = append(opts, nats.UserCredentials(cfg.Auth.CredsFile))
	case "token":
		logger.Info("Using token authentication")
		opts = append(opts, nats.Token(cfg.Auth.Token))
	case "userpass":
		logger.Info("Using username/password authentication", zap.String("username", cfg.Auth.Username))
		opts = append(opts, nats.UserInfo(cfg.Auth.Username, cfg.Auth.Password))
	case "none", "":
		logger.Debug("Using no authentication")
	default:
		return nil, fmt.Errorf("invalid auth type: %s", cfg.Auth.Type)
	}

	return opts, nil
}

// newTLSConfig loads the optional CA bundle and client key pair
func newTLSConfig(cfg config.TLSConfig, logger *zap.Logger) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse CA certificate %s", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
		logger.Debug("Loaded CA certificate", zap.String("file", cfg.CAFile))
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
		logger.Debug("Loaded client certificate", zap.String("cert", cfg.CertFile))
	}

	return tlsConfig, nil
}

// PublishReport publishes a report to JetStream and waits for the ack
func (c *Client) PublishReport(subject string, data []byte, timeout time.Duration) error {
	future, err := c.js.PublishAsync(subject, data)
	if err != nil {
		return fmt.Errorf("failed to queue publish to %s: %w", subject, err)
	}

	select {
	case <-future.Ok():
		c.logger.Debug("Published report",
			zap.String("subject", subject),
			zap.Int("bytes", len(data)))
		return nil
	case err := <-future.Err():
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	case <-time.After(timeout):
		return fmt.Errorf("publish to %s timed out after %v", subject, timeout)
	}
}

// Subscribe registers a core NATS handler for request/reply commands
func (c *Client) Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error) {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	c.logger.Info("Subscribed to subject", zap.String("subject", subject))
	return sub, nil
}

// drainPollInterval is how often Drain checks whether the connection closed
const drainPollInterval = 50 * time.Millisecond

// Drain lets in-flight messages finish, closing the connection when ctx
// expires first. nats.Conn.Drain only starts draining; the connection is
// closed once it completes.
func (c *Client) Drain(ctx context.Context) error {
	if c.conn.IsClosed() {
		return nil
	}

	if err := c.conn.Drain(); err != nil {
		return fmt.Errorf("drain failed: %w", err)
	}

	if err := waitClosed(ctx, c.conn.IsClosed, drainPollInterval); err != nil {
		c.logger.Warn("NATS drain timed out, forcing close")
		c.conn.Close()
		return err
	}
	c.logger.Info("NATS drain completed")
	return nil
}

// waitClosed polls isClosed until it reports true or ctx is done
func waitClosed(ctx context.Context, isClosed func() bool, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for !isClosed() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Close closes the connection immediately
func (c *Client) Close() {
	c.conn.Close()
}

// IsConnected reports whether the connection is currently up
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}
