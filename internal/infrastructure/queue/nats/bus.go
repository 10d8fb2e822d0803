package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

func (c *Client) publish(ctx context.Context, subject, modelID string) error {
	payload, err := encodeModelMessage(modelID, time.Now())
	if err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	call := func(_ context.Context) error {
		if err := c.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}

	if c.executor != nil {
		err = c.executor.Execute(ctx, "nats.publish."+subject, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(err)
}

// subscribe blocks until ctx is done, then drains. An empty group means every subscriber gets every message.
func (c *Client) subscribe(
	ctx context.Context,
	subject, group string,
	handler func(context.Context, modelMessage) error,
) error {
	callback := func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		decoded, err := decodeModelMessage(msg.Data)
		if err != nil {
			c.logger.Warn("nats_message_rejected", "subject", subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, decoded); err != nil {
			c.logger.Error("nats_handler_failed", "subject", subject, "model_id", decoded.ModelID, "error", err)
		}
	}

	var (
		sub *nats.Subscription
		err error
	)
	if group != "" {
		sub, err = c.conn.QueueSubscribe(subject, group, callback)
	} else {
		sub, err = c.conn.Subscribe(subject, callback)
	}
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}
	if err := c.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := c.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
