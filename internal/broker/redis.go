package broker

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"nest/internal/constants"
	"nest/internal/logger"
	"nest/pkg/models"
)

type redisPublisherClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher fans notices out over PUBLISH on "<prefix><bin_id>", so a
// subscriber can watch a single bin or PSUBSCRIBE to all of them.
type RedisPublisher struct {
	client redisPublisherClient
	prefix string
	logger logger.Logger
}

func NewRedisPublisher(client redisPublisherClient, prefix string, log logger.Logger) *RedisPublisher {
	if prefix == "" {
		prefix = constants.DefaultRedisChannelPrefix
	}
	return &RedisPublisher{client: client, prefix: prefix, logger: log}
}

func (p *RedisPublisher) Name() string {
	return constants.NotifierRedis
}

func (p *RedisPublisher) Channel(binID string) string {
	return p.prefix + binID
}

func (p *RedisPublisher) Publish(ctx context.Context, notice models.EventNotice) error {
	if err := notice.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}

	receivers, err := p.client.Publish(ctx, p.Channel(notice.BinID), body).Result()
	if err != nil {
		return fmt.Errorf("failed to publish redis notice: %w", err)
	}

	p.logger.DebugwCtx(ctx, "Notice published",
		"channel", p.Channel(notice.BinID),
		"receivers", receivers,
	)
	return nil
}

// Close is a no-op; the redis client is owned by the caller.
func (p *RedisPublisher) Close() error {
	return nil
}
