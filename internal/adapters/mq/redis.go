package mq

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisTransport appends messages to a Redis stream named after the topic.
type RedisTransport struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedis creates a client; it connects on first use.
func NewRedis(opt *redis.Options, stream string, maxLen int64) *RedisTransport {
	return &RedisTransport{client: redis.NewClient(opt), stream: stream, maxLen: maxLen}
}

// Name implements Transport.
func (r *RedisTransport) Name() string { return "redis" }

func (r *RedisTransport) args(m Message) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: r.maxLen > 0,
		Values: []interface{}{"key", m.Key, "route", m.Route, "payload", string(m.Payload)},
	}
}

// Send uses a single XADD, or a pipeline for several messages.
func (r *RedisTransport) Send(ctx context.Context, msgs []Message) error {
	if len(msgs) == 1 {
		if err := r.client.XAdd(ctx, r.args(msgs[0])).Err(); err != nil {
			return fmt.Errorf("xadd %s: %w", r.stream, err)
		}
		return nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(msgs))
	for i, m := range msgs {
		cmds[i] = pipe.XAdd(ctx, r.args(m))
	}
	_, execErr := pipe.Exec(ctx)

	var (
		failed int
		first  error
	)
	for _, cmd := range cmds {
		if err := cmd.Err(); err != nil {
			failed++
			if first == nil {
				first = err
			}
		}
	}
	if failed == 0 && execErr != nil {
		// Connection errors fail the whole pipeline without touching the commands.
		failed, first = len(msgs), execErr
	}
	if failed > 0 {
		return partialFailure(failed, len(msgs), fmt.Errorf("xadd %s: %w", r.stream, first))
	}
	return nil
}

// Ping sends PING.
func (r *RedisTransport) Ping(ctx context.Context) (bool, error) {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// Close closes the client.
func (r *RedisTransport) Close() error {
	return r.client.Close()
}
