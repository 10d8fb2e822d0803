package nats

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// modelMessage is the payload of both training jobs and activation events.
type modelMessage struct {
	ModelID string    `json:"modelId"`
	SentAt  time.Time `json:"sentAt"`
}

func encodeModelMessage(modelID string, now time.Time) ([]byte, error) {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return nil, errors.New("model id is empty")
	}
	return json.Marshal(modelMessage{ModelID: modelID, SentAt: now.UTC()})
}

// decodeModelMessage also accepts a bare model id so hand-published messages still work.
func decodeModelMessage(data []byte) (modelMessage, error) {
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return modelMessage{}, errors.New("empty message")
	}
	if !strings.HasPrefix(raw, "{") {
		return modelMessage{ModelID: raw}, nil
	}
	var msg modelMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return modelMessage{}, fmt.Errorf("decode model message: %w", err)
	}
	if strings.TrimSpace(msg.ModelID) == "" {
		return modelMessage{}, errors.New("message has no model id")
	}
	return msg, nil
}
