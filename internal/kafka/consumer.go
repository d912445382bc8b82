package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/arena-gamesync/internal/config"
	"github.com/arena-gamesync/internal/domain"
	"github.com/arena-gamesync/internal/metrics"
)

// ResultsHandler records a result submission
type ResultsHandler interface {
	SubmitResults(ctx context.Context, req domain.SubmitResultsRequest, source string) (*domain.SubmitResultsResponse, error)
}

// Consumer reads result submissions from Kafka and feeds them to the score ledger
type Consumer struct {
	config        *config.KafkaConfig
	handler       ResultsHandler
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, handler ResultsHandler, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	return newConsumer(cfg, consumerGroup, handler, logger), nil
}

func newConsumer(cfg *config.KafkaConfig, group sarama.ConsumerGroup, handler ResultsHandler, logger *slog.Logger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		handler:       handler,
		logger:        logger,
		consumerGroup: group,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start begins consuming and blocks until the first session is set up.
// If no session is established within start_timeout the consumer is
// stopped and an error is returned.
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	ready := make(chan struct{})
	var readyOnce sync.Once
	markReady := func() { readyOnce.Do(func() { close(ready) }) }

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		handler := &consumerGroupHandler{
			consumer: c,
			ready:    markReady,
		}
		for {
			err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler)
			if errors.Is(err, sarama.ErrClosedConsumerGroup) || c.ctx.Err() != nil {
				return
			}
			if err == nil {
				// rebalance, rejoin immediately
				continue
			}

			c.logger.Error("error from consumer", "error", err, "retry_in", c.config.RetryBackoff)
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(c.config.RetryBackoff):
			}
		}
	}()

	select {
	case <-ready:
		c.logger.Info("Kafka consumer ready")
	case <-c.ctx.Done():
		return c.ctx.Err()
	case <-time.After(c.config.StartTimeout):
		if err := c.Stop(); err != nil {
			c.logger.Warn("failed to close consumer group", "error", err)
		}
		return fmt.Errorf("no consumer group session after %s", c.config.StartTimeout)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// submitBatch records each submission in order. A failed submission is
// logged and does not stop the rest of the batch.
func (c *Consumer) submitBatch(ctx context.Context, batch []domain.SubmitResultsRequest) (submitted int) {
	for _, req := range batch {
		resp, err := c.handler.SubmitResults(ctx, req, metrics.SourceKafka)
		if err != nil {
			level := slog.LevelError
			if domain.IsClientError(err) {
				level = slog.LevelWarn
			}
			c.logger.Log(ctx, level, "failed to submit results",
				"lobby_id", req.LobbyID.String(),
				"error", err,
			)
			continue
		}
		submitted++
		c.logger.Debug("submitted results",
			"lobby_id", req.LobbyID.String(),
			"game_id", resp.GameID,
			"inserted", resp.Inserted,
		)
	}
	return submitted
}

// decodeMessage parses and validates one message value
func decodeMessage(value []byte) (domain.SubmitResultsRequest, error) {
	var req domain.SubmitResultsRequest
	if err := json.Unmarshal(value, &req); err != nil {
		return req, fmt.Errorf("decoding message: %w", err)
	}
	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    func()
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.ready()
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim batches messages from one partition
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	cfg := h.consumer.config
	batch := make([]domain.SubmitResultsRequest, 0, cfg.BatchSize)
	batchTimer := time.NewTimer(cfg.BatchTimeout)
	defer batchTimer.Stop()

	processBatch := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		n := h.consumer.submitBatch(ctx, batch)
		h.consumer.logger.Debug("processed batch", "batch_size", len(batch), "submitted", n)

		batch = batch[:0]
	}

	for {
		select {
		case <-session.Context().Done():
			processBatch()
			return nil

		case <-batchTimer.C:
			processBatch()
			batchTimer.Reset(cfg.BatchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				processBatch()
				return nil
			}

			req, err := decodeMessage(message.Value)
			if err != nil {
				h.consumer.logger.Warn("skipping invalid results message",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				session.MarkMessage(message, "")
				continue
			}

			batch = append(batch, req)
			session.MarkMessage(message, "")

			if len(batch) >= cfg.BatchSize {
				processBatch()
				batchTimer.Reset(cfg.BatchTimeout)
			}
		}
	}
}
