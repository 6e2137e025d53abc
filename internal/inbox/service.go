package inbox

import (
	"context"
	"time"

	"nest/internal/constants"
	"nest/internal/logger"
	"nest/pkg/metrics"
)

type ServiceConfig struct {
	BaseURL      string
	DefaultLimit int
	MaxLimit     int
}

type QueryService struct {
	bins   BinRepository
	events EventRepository
	cfg    ServiceConfig
	logger logger.Logger
}

func NewService(bins BinRepository, events EventRepository, cfg ServiceConfig, log logger.Logger) *QueryService {
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = constants.MaxLimit
	}
	if cfg.DefaultLimit <= 0 || cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = constants.DefaultLimit
	}
	return &QueryService{
		bins:   bins,
		events: events,
		cfg:    cfg,
		logger: log,
	}
}

func track(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncQuery(operation, status)
}

func (s *QueryService) CreateBin(ctx context.Context, req CreateBinRequest) (resp *BinResponse, err error) {
	defer func() { track("create_bin", err) }()

	bin, err := s.bins.CreateBin(ctx, req.Name)
	if err != nil {
		return nil, err
	}

	s.logger.InfowCtx(ctx, "bin_created", "bin_id", bin.ID)

	r := NewBinResponse(*bin, s.cfg.BaseURL)
	return &r, nil
}

func (s *QueryService) GetBin(ctx context.Context, id string) (resp *BinResponse, err error) {
	defer func() { track("get_bin", err) }()

	bin, err := s.bins.GetBin(ctx, id)
	if err != nil || bin == nil {
		return nil, err
	}

	r := NewBinResponse(*bin, s.cfg.BaseURL)
	return &r, nil
}

func (s *QueryService) ListBins(ctx context.Context) (resp *BinListResponse, err error) {
	defer func() { track("list_bins", err) }()

	bins, err := s.bins.ListBins(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]BinResponse, 0, len(bins))
	for _, b := range bins {
		out = append(out, NewBinResponse(b, s.cfg.BaseURL))
	}
	return &BinListResponse{Bins: out}, nil
}

// EffectiveLimit applies the default when limit is unset and clamps it to
// the configured ceiling.
func (s *QueryService) EffectiveLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		return s.cfg.MaxLimit
	}
	return limit
}

func (s *QueryService) ListEventsByBin(ctx context.Context, binID string, limit int) (resp *EventListResponse, err error) {
	defer func(start time.Time) {
		track("list_events", err)
		s.logger.DebugwCtx(ctx, "events listed", "bin_id", binID, "duration", time.Since(start))
	}(time.Now())

	bin, err := s.bins.GetBin(ctx, binID)
	if err != nil || bin == nil {
		return nil, err
	}

	events, err := s.events.ListEventsByBin(ctx, binID, s.EffectiveLimit(limit))
	if err != nil {
		return nil, err
	}

	out := make([]EventSummary, 0, len(events))
	for _, e := range events {
		out = append(out, NewEventSummary(e))
	}
	return &EventListResponse{Events: out}, nil
}

func (s *QueryService) GetEvent(ctx context.Context, id string) (resp *EventDetail, err error) {
	defer func() { track("get_event", err) }()

	event, err := s.events.GetEvent(ctx, id)
	if err != nil || event == nil {
		return nil, err
	}

	d := NewEventDetail(*event)
	return &d, nil
}
