package inbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nest/internal/constants"
	"nest/internal/logger"
	apperrors "nest/pkg/errors"
	"nest/pkg/logging"
	"nest/pkg/metrics"
	"nest/pkg/models"
)

type IngestStatus int

const (
	IngestCaptured IngestStatus = iota
	IngestBinNotFound
	IngestPayloadTooLarge
)

func (s IngestStatus) String() string {
	switch s {
	case IngestCaptured:
		return "captured"
	case IngestBinNotFound:
		return "bin_not_found"
	case IngestPayloadTooLarge:
		return "payload_too_large"
	default:
		return "unknown"
	}
}

// IngestRequest is one inbound request addressed to a bin, independent of
// the HTTP framework that received it.
type IngestRequest struct {
	BinID  string
	Method string
	// Path is the remainder after the bin segment, without a leading slash.
	Path   string
	Query  url.Values
	Header http.Header
	// ContentLength is the declared body size, or -1 when unknown.
	ContentLength int64
	Body          io.Reader
	RemoteIP      *string
}

// IngestResult is the outcome of an ingest. Expected rejections are reported
// through Status; only storage and read failures are returned as errors.
type IngestResult struct {
	Status IngestStatus
	Event  *Event
	// MaxSize and ActualSize are set for IngestPayloadTooLarge. Declared
	// tells whether ActualSize came from the declared length.
	MaxSize    int64
	ActualSize int64
	Declared   bool
}

// Err renders a rejection as the transport error it maps to.
func (r IngestResult) Err(binID string) *apperrors.Error {
	switch r.Status {
	case IngestBinNotFound:
		return apperrors.NotFound("Bin", binID)
	case IngestPayloadTooLarge:
		return apperrors.PayloadTooLarge(r.MaxSize, r.ActualSize)
	default:
		return nil
	}
}

type IngestConfig struct {
	MaxBodySize int64
}

type IngestPipeline struct {
	bins     BinRepository
	events   EventRepository
	notifier Notifier
	cfg      IngestConfig
	logger   logger.Logger
}

// NewIngestPipeline wires the pipeline. notifier may be nil.
func NewIngestPipeline(bins BinRepository, events EventRepository, notifier Notifier, cfg IngestConfig, log logger.Logger) *IngestPipeline {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = constants.DefaultMaxBodySize
	}
	return &IngestPipeline{
		bins:     bins,
		events:   events,
		notifier: notifier,
		cfg:      cfg,
		logger:   log,
	}
}

func (p *IngestPipeline) Ingest(ctx context.Context, req IngestRequest) (result IngestResult, err error) {
	start := time.Now()
	ctx = logging.WithBinID(ctx, req.BinID)
	defer func() {
		status := result.Status.String()
		if err != nil {
			status = "error"
		}
		metrics.ObserveIngest(status, time.Since(start))
	}()

	maxSize := p.cfg.MaxBodySize

	if req.ContentLength > maxSize {
		p.logger.WarnwCtx(ctx, "Ingest rejected",
			"reason", apperrors.ErrPayloadTooLarge.Code,
			"declared_size", req.ContentLength,
			"max_size", maxSize,
		)
		return IngestResult{
			Status:     IngestPayloadTooLarge,
			MaxSize:    maxSize,
			ActualSize: req.ContentLength,
			Declared:   true,
		}, nil
	}

	body, actual, err := readBody(ctx, req.Body, maxSize)
	if err != nil {
		return IngestResult{}, err
	}
	if actual > maxSize {
		p.logger.WarnwCtx(ctx, "Ingest rejected",
			"reason", apperrors.ErrPayloadTooLarge.Code,
			"actual_size", actual,
			"max_size", maxSize,
		)
		return IngestResult{
			Status:     IngestPayloadTooLarge,
			MaxSize:    maxSize,
			ActualSize: actual,
		}, nil
	}

	bin, err := p.bins.GetBin(ctx, req.BinID)
	if err != nil {
		return IngestResult{}, err
	}
	if bin == nil {
		return p.binNotFound(ctx), nil
	}

	event := &Event{
		BinID:       req.BinID,
		Method:      strings.ToUpper(req.Method),
		Path:        req.Path,
		QueryParams: NormalizeQuery(req.Query),
		Headers:     NormalizeHeaders(req.Header),
		BodyB64:     EncodeBody(body),
		RemoteIP:    req.RemoteIP,
	}

	if err := p.events.CreateEvent(ctx, event); err != nil {
		if errors.Is(err, ErrBinMissing) {
			return p.binNotFound(ctx), nil
		}
		return IngestResult{}, err
	}

	metrics.ObserveIngestBodySize(len(body))
	p.logger.InfowCtx(ctx, "event_ingested",
		"event_id", event.ID,
		"method", event.Method,
		"size_bytes", len(body),
	)

	p.publish(ctx, event, len(body))

	return IngestResult{Status: IngestCaptured, Event: event}, nil
}

func (p *IngestPipeline) binNotFound(ctx context.Context) IngestResult {
	p.logger.WarnwCtx(ctx, "Ingest rejected", "reason", apperrors.ErrNotFound.Code)
	return IngestResult{Status: IngestBinNotFound}
}

// publish announces a committed event. Failures are logged and counted only;
// the event is already durable.
func (p *IngestPipeline) publish(ctx context.Context, event *Event, size int) {
	if p.notifier == nil {
		return
	}

	notice := models.NewEventNoticeBuilder().
		WithEvent(event.ID, event.BinID).
		WithRequest(event.Method, event.Path, size).
		WithRemoteIP(event.RemoteIP).
		WithCreatedAt(event.CreatedAt).
		WithTraceID(logging.GetRequestID(ctx)).
		Build()

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultPublishTimeout)
	defer cancel()

	if err := p.notifier.Publish(pubCtx, notice); err != nil {
		metrics.IncNoticePublished(p.notifier.Name(), "error")
		p.logger.WarnwCtx(ctx, "Failed to publish event notice",
			"event_id", event.ID,
			"notifier", p.notifier.Name(),
			"error", err,
		)
		return
	}
	metrics.IncNoticePublished(p.notifier.Name(), "success")
}

// readBody reads at most maxSize+1 bytes into memory. When the limit is
// exceeded the rest is drained without buffering so the true size can be
// reported.
func readBody(ctx context.Context, body io.Reader, maxSize int64) ([]byte, int64, error) {
	if body == nil {
		return []byte{}, 0, nil
	}

	r := &contextReader{ctx: ctx, r: body}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, 0, readError(ctx, err)
	}
	if int64(len(data)) <= maxSize {
		return data, int64(len(data)), nil
	}

	rest, err := io.Copy(io.Discard, r)
	if err != nil {
		return nil, 0, readError(ctx, err)
	}
	return nil, int64(len(data)) + rest, nil
}

func readError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.ErrTimeout.WithCause(err)
	}
	return apperrors.ErrValidation.WithMessage("failed to read request body").WithCause(fmt.Errorf("read body: %w", err))
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// NormalizeHeaders lower-cases names and keeps the first value of each.
func NormalizeHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) == 0 {
			continue
		}
		key := strings.ToLower(name)
		if _, exists := out[key]; exists {
			continue
		}
		out[key] = values[0]
	}
	return out
}

// NormalizeQuery keeps the last value of each parameter.
func NormalizeQuery(q url.Values) map[string]string {
	out := make(map[string]string, len(q))
	for name, values := range q {
		if len(values) == 0 {
			continue
		}
		out[name] = values[len(values)-1]
	}
	return out
}
