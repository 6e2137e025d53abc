package broker

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"nest/internal/config"
	"nest/internal/constants"
	"nest/internal/logger"
)

func NewPublisher(cfg config.NotifierConfig, rdb redis.UniversalClient, log logger.Logger) (Publisher, error) {
	switch cfg.Type {
	case "", constants.NotifierNone:
		return NopPublisher{}, nil
	case constants.NotifierKafka:
		return NewKafkaPublisher(cfg.Kafka, log), nil
	case constants.NotifierRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis notifier requires database.redis to be configured")
		}
		return NewRedisPublisher(rdb, cfg.Redis.ChannelPrefix, log), nil
	default:
		return nil, fmt.Errorf("unknown notifier type: %s", cfg.Type)
	}
}
