package queue

import (
	"encoding/json"
	"errors"
	"time"
)

// Build request operations.
const (
	OpBuild     = "build"
	OpReconcile = "reconcile"
)

// BuildRequestMsg asks a worker to run the graph pipeline.
type BuildRequestMsg struct {
	CorrelationID string    `json:"correlation_id"`
	Operation     string    `json:"operation"`
	RunID         string    `json:"run_id,omitempty"`
	RequestedAt   time.Time `json:"requested_at"`
}

func decodeBuildRequest(body []byte) (*BuildRequestMsg, error) {
	var msg BuildRequestMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, err
	}
	if msg.Operation == "" {
		msg.Operation = OpBuild
	}
	switch msg.Operation {
	case OpBuild:
	case OpReconcile:
		if msg.RunID == "" {
			return nil, errors.New("reconcile request without run id")
		}
	default:
		return nil, errors.New("unknown operation " + msg.Operation)
	}
	return &msg, nil
}
