package inbox

import (
	"context"
	"errors"

	"nest/pkg/models"
)

// ErrBinMissing is returned by EventRepository.CreateEvent when the owning
// bin does not exist at insert time.
var ErrBinMissing = errors.New("bin does not exist")

// ErrUnstorable wraps store rejections caused by the captured data itself
// rather than by the store being unhealthy.
var ErrUnstorable = errors.New("data rejected by store")

type BinRepository interface {
	CreateBin(ctx context.Context, name *string) (*Bin, error)
	// GetBin returns nil, nil when the bin does not exist.
	GetBin(ctx context.Context, id string) (*Bin, error)
	// ListBins returns all bins, newest first.
	ListBins(ctx context.Context) ([]Bin, error)
}

type EventRepository interface {
	// CreateEvent assigns ID and CreatedAt and persists the event atomically.
	CreateEvent(ctx context.Context, event *Event) error
	// GetEvent returns nil, nil when the event does not exist.
	GetEvent(ctx context.Context, id string) (*Event, error)
	// ListEventsByBin returns at most limit events, newest first.
	ListEventsByBin(ctx context.Context, binID string, limit int) ([]Event, error)
	// ForEachEventByBin streams every event of a bin, oldest first.
	ForEachEventByBin(ctx context.Context, binID string, fn func(Event) error) error
}

type Service interface {
	CreateBin(ctx context.Context, req CreateBinRequest) (*BinResponse, error)
	// GetBin returns nil, nil when the bin does not exist.
	GetBin(ctx context.Context, id string) (*BinResponse, error)
	ListBins(ctx context.Context) (*BinListResponse, error)
	// ListEventsByBin returns nil, nil when the bin does not exist.
	ListEventsByBin(ctx context.Context, binID string, limit int) (*EventListResponse, error)
	// GetEvent returns nil, nil when the event does not exist.
	GetEvent(ctx context.Context, id string) (*EventDetail, error)
}

type Notifier interface {
	Publish(ctx context.Context, notice models.EventNotice) error
	Name() string
}
