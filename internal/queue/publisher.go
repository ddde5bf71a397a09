package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/OFFIS-RIT/fingraph/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Publisher enqueues build requests.
type Publisher interface {
	PublishBuildRequest(ctx context.Context, msg BuildRequestMsg) (string, error)
}

// BuildPublisher publishes to BuildQueue over one channel. amqp channels are
// not safe for concurrent use, so publishes are serialized.
type BuildPublisher struct {
	mu sync.Mutex
	ch channel
}

var _ Publisher = (*BuildPublisher)(nil)

func NewBuildPublisher(ch channel) *BuildPublisher {
	return &BuildPublisher{ch: ch}
}

// PublishBuildRequest fills in the correlation id and timestamp when missing
// and returns the correlation id.
func (p *BuildPublisher) PublishBuildRequest(ctx context.Context, msg BuildRequestMsg) (string, error) {
	if msg.CorrelationID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return "", fmt.Errorf("failed to generate correlation id: %w", err)
		}
		msg.CorrelationID = id
	}
	if msg.Operation == "" {
		msg.Operation = OpBuild
	}
	if msg.RequestedAt.IsZero() {
		msg.RequestedAt = time.Now()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := PublishFIFO(ctx, p.ch, BuildQueue, body, nil); err != nil {
		return "", fmt.Errorf("failed to publish build request: %w", err)
	}
	logger.Info("[Queue] Build request published", "correlation_id", msg.CorrelationID, "operation", msg.Operation)
	return msg.CorrelationID, nil
}
