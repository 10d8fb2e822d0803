package nats

import "context"

// ModelEvents fans activation changes out to every API replica.
type ModelEvents struct {
	client  *Client
	subject string
}

func NewModelEvents(client *Client, subject string) *ModelEvents {
	return &ModelEvents{client: client, subject: subject}
}

func (e *ModelEvents) PublishModelActivated(ctx context.Context, modelID string) error {
	return e.client.publish(ctx, e.subject, modelID)
}

func (e *ModelEvents) SubscribeModelActivated(ctx context.Context, handler func(context.Context, string) error) error {
	return e.client.subscribe(ctx, e.subject, "", func(ctx context.Context, msg modelMessage) error {
		return handler(ctx, msg.ModelID)
	})
}
