package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/fingraph/internal/config"
	"github.com/OFFIS-RIT/fingraph/internal/queue"
	"github.com/OFFIS-RIT/fingraph/internal/timing"
	"github.com/OFFIS-RIT/fingraph/pkg/leaselock"
	"github.com/OFFIS-RIT/fingraph/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	cfg := config.Load()
	cfg.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init pgx client
	pgConn, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	src, err := cfg.OpenRecordSource(ctx, pgConn)
	if err != nil {
		logger.Fatal("Failed to open record source", "err", err)
	}

	nc, err := cfg.OpenCache()
	if err != nil {
		logger.Warn("Neighborhood cache invalidation disabled", "err", err)
		nc = nil
	}
	if nc != nil {
		defer nc.Close()
	}

	graphClient, err := cfg.NewGraphClient(pgConn, src, nc)
	if err != nil {
		logger.Fatal("Failed to create graph client", "err", err)
	}

	handler := &queue.BuildHandler{
		Graph:        graphClient,
		Lease:        leaselock.New(pgConn),
		History:      timing.NewBuildHistory(pgConn),
		LeaseOptions: leaselock.Options{TTL: cfg.LeaseTTL, Wait: true, WaitJitter: time.Second},
	}

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	// prefetch=1 keeps a single build in flight per worker
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		go func(qName string) {
			consumerTag := fmt.Sprintf("%s_consumer", qName)
			msgs, err := consumerCh.Consume(
				qName,
				consumerTag,
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						stop()
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	logger.Info("Listening for messages")

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case qm := <-messageChan:
				startTime := time.Now()
				logger.Info("Received message", "queue", qm.queueName)

				processingErr := handler.ProcessBuildMessage(ctx, qm.msg.Body)

				// If there was an error send to retry or dead-letter, otherwise ack the message
				if processingErr != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
					if err := queue.HandleProcessingError(context.WithoutCancel(ctx), ch, qm.msg, qm.queueName, processingErr); err != nil {
						logger.Error("Failed to reschedule message", "queue", qm.queueName, "err", err)
					}
				} else {
					if err := qm.msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", qm.queueName)
				}

				processingDuration := time.Since(startTime)
				hours := int(processingDuration.Hours())
				minutes := int(processingDuration.Minutes()) % 60
				seconds := int(processingDuration.Seconds()) % 60
				logger.Info(
					"Processing time",
					"duration", fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds),
				)
				logger.Info("Waiting for next message")
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}
