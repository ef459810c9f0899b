// Package redis mirrors received MQTT messages into a Redis stream.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"

	"github.com/ibs-source/mqtt-subscriber/internal/config"
	"github.com/ibs-source/mqtt-subscriber/internal/log"
	"github.com/ibs-source/mqtt-subscriber/internal/message"
)

// Recorder appends received messages to a capped Redis stream
type Recorder struct {
	rdb          *redis.Client
	stream       string
	maxLen       int64
	writeTimeout time.Duration
	log          *log.Logger
}

// NewRecorder connects to Redis and verifies it with a PING.
func NewRecorder(cfg *config.RecorderConfig, logger *log.Logger) (*Recorder, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
		// No extra maintenance traffic towards Redis.
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Recording received messages to Redis stream '%s' (max len %d)", cfg.Stream, cfg.MaxLen)

	return &Recorder{
		rdb:          rdb,
		stream:       cfg.Stream,
		maxLen:       cfg.MaxLen,
		writeTimeout: cfg.WriteTimeout,
		log:          logger,
	}, nil
}

// Record appends msg to the stream and returns the entry ID.
// MaxLen 0 disables trimming.
func (r *Recorder) Record(ctx context.Context, msg message.Received) (string, error) {
	object, err := msg.Encode()
	if err != nil {
		return "", fmt.Errorf("failed to encode message on %s: %w", msg.Topic, err)
	}

	if r.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.writeTimeout)
		defer cancel()
	}

	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: []interface{}{
			"id", uuid.NewString(),
			"topic", msg.Topic,
			"object", string(object),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	id, err := r.rdb.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd failed for stream %s: %w", r.stream, err)
	}

	r.log.Trace("Recorded message from %s as %s", msg.Topic, id)
	return id, nil
}

// Close closes the Redis client connection
func (r *Recorder) Close() error {
	if r.rdb != nil {
		return r.rdb.Close()
	}
	return nil
}
