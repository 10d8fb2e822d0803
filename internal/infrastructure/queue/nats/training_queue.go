package nats

import (
	"context"
	"time"
)

const trainersGroup = "trainers"

// TrainingQueue delivers each training job to exactly one worker of the trainers group.
type TrainingQueue struct {
	client  *Client
	subject string
	// onLag, when set, receives the delay between publish and delivery.
	onLag func(time.Duration)
}

func NewTrainingQueue(client *Client, subject string, onLag func(time.Duration)) *TrainingQueue {
	return &TrainingQueue{client: client, subject: subject, onLag: onLag}
}

func (q *TrainingQueue) PublishTrainingRequested(ctx context.Context, modelID string) error {
	return q.client.publish(ctx, q.subject, modelID)
}

func (q *TrainingQueue) SubscribeTrainingRequested(ctx context.Context, handler func(context.Context, string) error) error {
	return q.client.subscribe(ctx, q.subject, trainersGroup, func(ctx context.Context, msg modelMessage) error {
		if q.onLag != nil && !msg.SentAt.IsZero() {
			q.onLag(time.Since(msg.SentAt))
		}
		return handler(ctx, msg.ModelID)
	})
}
