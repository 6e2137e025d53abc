package broker

import (
	"context"

	"nest/pkg/models"
)

// Publisher delivers captured-event notices to subscribers. Implementations
// must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, notice models.EventNotice) error
	Name() string
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.EventNotice) error { return nil }

func (NopPublisher) Name() string { return "none" }

func (NopPublisher) Close() error { return nil }
