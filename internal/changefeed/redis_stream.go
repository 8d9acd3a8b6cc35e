package changefeed

import (
	"context"
	"fmt"
	"time"

	"shop-notifier/internal/common/errors"
	"shop-notifier/internal/common/logger"
	"shop-notifier/internal/common/metrics"

	"github.com/redis/go-redis/v9"
)

const (
	SourceRedisStream = "redis-stream"

	// EventField is the stream entry field carrying the JSON change event.
	EventField = "event"
)

// StreamClient is implemented by database.RedisClient.
type StreamClient interface {
	EnsureGroup(ctx context.Context, stream, group string) error
	ReadGroup(ctx context.Context, stream, group, consumer, id string, count int64, block time.Duration) ([]redis.XMessage, error)
	Ack(ctx context.Context, stream, group string, ids ...string) error
}

type RedisStreamOptions struct {
	Stream       string
	Group        string
	Consumer     string
	BatchSize    int64
	Block        time.Duration
	EventTimeout time.Duration
	// RetryDelay is the pause after a failed read.
	RetryDelay time.Duration
}

// RedisStreamSource consumes change events published by the document store's
// change-data-capture job into a Redis stream, using a consumer group so that
// several notifier replicas share the feed.
type RedisStreamSource struct {
	client StreamClient
	opts   RedisStreamOptions
	logger logger.Logger
}

func NewRedisStreamSource(client StreamClient, opts RedisStreamOptions, log logger.Logger) *RedisStreamSource {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &RedisStreamSource{
		client: client,
		opts:   opts,
		logger: log.WithFields(map[string]interface{}{
			"source": SourceRedisStream,
			"stream": opts.Stream,
			"group":  opts.Group,
		}),
	}
}

func (s *RedisStreamSource) Name() string { return SourceRedisStream }

func (s *RedisStreamSource) Run(ctx context.Context, listener ChangeListener) error {
	if err := s.client.EnsureGroup(ctx, s.opts.Stream, s.opts.Group); err != nil {
		return errors.NewSourceUnavailableError(SourceRedisStream, err)
	}

	// Entries delivered to this consumer before a restart but never acked.
	if err := s.replayPending(ctx, listener); err != nil {
		return err
	}

	s.logger.Info("consuming change stream", map[string]interface{}{"consumer": s.opts.Consumer})

	for {
		if ctx.Err() != nil {
			return nil
		}

		msgs, err := s.client.ReadGroup(ctx, s.opts.Stream, s.opts.Group, s.opts.Consumer, ">", s.opts.BatchSize, s.opts.Block)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("stream read failed, retrying", map[string]interface{}{
				"error":       err.Error(),
				"nextRetryIn": s.opts.RetryDelay.String(),
			})
			select {
			case <-time.After(s.opts.RetryDelay):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		if n := s.processBatch(ctx, listener, msgs); n < len(msgs) {
			s.leavePending(msgs[n:])
			return nil
		}
	}
}

func (s *RedisStreamSource) replayPending(ctx context.Context, listener ChangeListener) error {
	lastID := "0"
	for {
		msgs, err := s.client.ReadGroup(ctx, s.opts.Stream, s.opts.Group, s.opts.Consumer, lastID, s.opts.BatchSize, 0)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.NewSourceUnavailableError(SourceRedisStream, fmt.Errorf("replay pending: %w", err))
		}
		if len(msgs) == 0 {
			return nil
		}
		s.logger.Info("replaying unacknowledged entries", map[string]interface{}{"count": len(msgs)})
		if n := s.processBatch(ctx, listener, msgs); n < len(msgs) {
			s.leavePending(msgs[n:])
			return nil
		}
		lastID = msgs[len(msgs)-1].ID
	}
}

// processBatch handles msgs in order until ctx is done and returns how many
// were handed to the listener. The rest stay in the consumer's pending list
// and are replayed on the next start.
func (s *RedisStreamSource) processBatch(ctx context.Context, listener ChangeListener, msgs []redis.XMessage) int {
	for i, msg := range msgs {
		if ctx.Err() != nil {
			return i
		}
		s.process(ctx, listener, msg)
	}
	return len(msgs)
}

func (s *RedisStreamSource) leavePending(msgs []redis.XMessage) {
	s.logger.Info("stopping with unprocessed entries left pending", map[string]interface{}{
		"count":   len(msgs),
		"firstId": msgs[0].ID,
	})
}

func (s *RedisStreamSource) process(ctx context.Context, listener ChangeListener, msg redis.XMessage) {
	metrics.ChangeEventsReceived.WithLabelValues(SourceRedisStream).Inc()

	raw, ok := msg.Values[EventField].(string)
	if !ok {
		err := errors.NewEventDecodeFailedError(SourceRedisStream, fmt.Errorf("entry has no %q field", EventField))
		s.reject(msg.ID, err)
	} else if ev, err := Decode(SourceRedisStream, []byte(raw)); err != nil {
		s.reject(msg.ID, err)
	} else {
		deliver(ctx, listener, ev, s.opts.EventTimeout)
	}

	// Malformed entries are acked too; they would fail identically forever.
	// The listener has returned, so ack even if ctx was cancelled meanwhile.
	if err := s.client.Ack(context.WithoutCancel(ctx), s.opts.Stream, s.opts.Group, msg.ID); err != nil {
		s.logger.Error("failed to ack stream entry", map[string]interface{}{
			"entryId": msg.ID,
			"error":   err.Error(),
		})
	}
}

func (s *RedisStreamSource) reject(id string, err error) {
	recordRejected(SourceRedisStream, err)
	s.logger.Warn("dropping malformed stream entry", map[string]interface{}{
		"entryId":   id,
		"errorCode": errors.CodeOf(err),
		"error":     err.Error(),
	})
}
