package nats

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/product-classifier/internal/infrastructure/resilience"
)

const closeFlushTimeout = 2 * time.Second

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

// Client owns one broker connection shared by the training queue and the model events bus.
type Client struct {
	conn     *nats.Conn
	executor *resilience.Executor
	logger   *slog.Logger
}

func Connect(url, name string, options Options) (*Client, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Client{conn: conn, executor: options.ResilienceExecutor, logger: logger}, nil
}

// Close flushes pending publishes so short-lived processes do not lose them.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if c.conn.IsConnected() {
		if err := c.conn.FlushTimeout(closeFlushTimeout); err != nil {
			c.logger.Warn("nats_flush_failed", "error", err)
		}
	}
	c.conn.Close()
}
