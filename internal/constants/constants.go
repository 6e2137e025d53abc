package constants

import "time"

// Version is overridden at build time with -ldflags "-X nest/internal/constants.Version=...".
var Version = "0.1.0"

const (
	ServiceName = "nest-server"
)

const (
	BinIDPrefix   = "b_"
	EventIDPrefix = "e_"
)

const (
	DefaultLimit       = 50
	MaxLimit           = 100
	DefaultMaxBodySize = 1048576
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultNoticeTopic          = "captured_events"
	DefaultRedisChannelPrefix   = "nest:bin:"
	DefaultBinCacheCapacity     = 10000
	DefaultRequestTimeout       = 30 * time.Second
	DefaultPublishTimeout       = 5 * time.Second
	DefaultArchiveUploadTimeout = 5 * time.Minute
)

const (
	DefaultMaxOpenConns    = 20
	DefaultMaxIdleConns    = 5
	DefaultConnMaxLifetime = 30 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	NotifierNone  = "none"
	NotifierKafka = "kafka"
	NotifierRedis = "redis"
)
