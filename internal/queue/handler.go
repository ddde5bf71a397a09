package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/fingraph/internal/timing"
	"github.com/OFFIS-RIT/fingraph/pkg/graph"
	"github.com/OFFIS-RIT/fingraph/pkg/leaselock"
	"github.com/OFFIS-RIT/fingraph/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const maxRetries = 10

// ErrInvalidMessage marks a message body that can never be processed.
// HandleProcessingError sends such messages straight to the dead-letter queue.
var ErrInvalidMessage = errors.New("invalid build request")

// GraphRunner is the part of graph.GraphClient the worker drives.
type GraphRunner interface {
	BuildGraph(ctx context.Context) (*graph.BuildReport, error)
	Reconcile(ctx context.Context, runID string) (int, int, error)
}

// BuildHandler processes build requests one at a time under the build lease.
type BuildHandler struct {
	Graph   GraphRunner
	Lease   leaselock.Locker
	History timing.History
	// LeaseOptions default to waiting for the lease.
	LeaseOptions leaselock.Options
}

// ProcessBuildMessage runs the requested operation. A build that completed
// with recorded failures is not an error; only hard failures are returned so
// the message is retried.
func (h *BuildHandler) ProcessBuildMessage(ctx context.Context, body []byte) error {
	msg, err := decodeBuildRequest(body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	opts := h.LeaseOptions
	if !opts.Wait {
		opts.Wait = true
	}

	return h.Lease.WithLease(ctx, leaselock.BuildKey, opts, func(ctx context.Context) error {
		switch msg.Operation {
		case OpReconcile:
			nodes, edges, err := h.Graph.Reconcile(ctx, msg.RunID)
			if err != nil {
				return err
			}
			logger.Info("[Queue] Reconcile finished", "correlation_id", msg.CorrelationID, "nodes", nodes, "edges", edges)
			return nil
		default:
			return h.build(ctx, msg)
		}
	})
}

func (h *BuildHandler) build(ctx context.Context, msg *BuildRequestMsg) error {
	report, buildErr := h.Graph.BuildGraph(ctx)

	if h.History != nil {
		// record even when the worker is shutting down
		recordCtx := context.WithoutCancel(ctx)
		if _, err := h.History.RecordBuildRun(recordCtx, msg.CorrelationID, report, buildErr); err != nil {
			logger.Warn("[Queue] Failed to record build run", "correlation_id", msg.CorrelationID, "err", err)
		}
	}

	if buildErr != nil {
		return buildErr
	}
	logger.Info(
		"[Queue] Build finished",
		"correlation_id", msg.CorrelationID,
		"run_id", report.RunID,
		"edges", report.EdgeCount,
		"failures", len(report.Failures),
		"duration", report.Duration,
	)
	return nil
}

// RetryCount reads the x-retries header. Brokers hand integers back in
// different widths.
func RetryCount(headers amqp091.Table) int {
	switch v := headers["x-retries"].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

// HandleProcessingError republishes a failed message to the retry queue, or
// to the dead-letter queue once it exhausted its retries or cause is
// ErrInvalidMessage, then acks it. If republishing fails the message is
// requeued.
func HandleProcessingError(ctx context.Context, ch channel, msg amqp091.Delivery, queueName string, cause error) error {
	retries := RetryCount(msg.Headers)

	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	target := queueName + "_retry"
	if retries >= maxRetries || errors.Is(cause, ErrInvalidMessage) {
		target = queueName + "_dlq"
		logger.Warn("[Queue] Sending message to DLQ", "dlq", target, "retries", retries, "err", cause)
	} else {
		headers["x-retries"] = int32(retries + 1)
	}

	if err := PublishFIFO(ctx, ch, target, msg.Body, headers); err != nil {
		logger.Error("[Queue] Failed to republish message", "queue", target, "err", err)
		return errors.Join(err, msg.Nack(false, true))
	}
	return msg.Ack(false)
}
