// Package archive copies the captured events of a bin to object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"nest/internal/constants"
	"nest/internal/inbox"
	"nest/internal/logger"
	"nest/pkg/cel"
	apperrors "nest/pkg/errors"
	"nest/pkg/metrics"
	"nest/pkg/retry"
)

const keyTimeLayout = "20060102T150405Z"

// Uploader is the subset of the S3 client the exporter needs.
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Record is one line of an archive object. The body stays base64 so the
// archive is byte exact.
type Record struct {
	ID          string            `json:"id"`
	BinID       string            `json:"bin_id"`
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	QueryParams map[string]string `json:"query_params"`
	Headers     map[string]string `json:"headers"`
	BodyB64     string            `json:"body_b64"`
	RemoteIP    *string           `json:"remote_ip"`
	SizeBytes   int               `json:"size_bytes"`
	CreatedAt   time.Time         `json:"created_at"`
}

func NewRecord(e inbox.Event) Record {
	return Record{
		ID:          e.ID,
		BinID:       e.BinID,
		Method:      e.Method,
		Path:        e.Path,
		QueryParams: e.QueryParams,
		Headers:     e.Headers,
		BodyB64:     e.BodyB64,
		RemoteIP:    e.RemoteIP,
		SizeBytes:   e.SizeBytes(),
		CreatedAt:   e.CreatedAt,
	}
}

type Config struct {
	Bucket string
	Prefix string
	Retry  retry.Policy
	// Filter, when set, keeps only the events it matches.
	Filter *cel.Filter
}

type Result struct {
	Bucket  string
	Key     string
	Events  int
	Skipped int
	Bytes   int
}

// FilterFields exposes an event to filter expressions with its body decoded
// for display.
func FilterFields(e inbox.Event) cel.EventFields {
	remoteIP := ""
	if e.RemoteIP != nil {
		remoteIP = *e.RemoteIP
	}
	return cel.EventFields{
		ID:        e.ID,
		Method:    e.Method,
		Path:      e.Path,
		Query:     e.QueryParams,
		Headers:   e.Headers,
		Body:      inbox.DisplayBody(e.BodyB64),
		SizeBytes: e.SizeBytes(),
		RemoteIP:  remoteIP,
		CreatedAt: e.CreatedAt,
	}
}

type Exporter struct {
	bins     inbox.BinRepository
	events   inbox.EventRepository
	uploader Uploader
	cfg      Config
	logger   logger.Logger
	now      func() time.Time
}

func NewExporter(bins inbox.BinRepository, events inbox.EventRepository, uploader Uploader, cfg Config, log logger.Logger) *Exporter {
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.UploadPolicy()
	}
	return &Exporter{
		bins:     bins,
		events:   events,
		uploader: uploader,
		cfg:      cfg,
		logger:   log,
		now:      time.Now,
	}
}

// Key returns "<prefix><bin_id>/<timestamp>.jsonl.gz".
func (e *Exporter) Key(binID string, at time.Time) string {
	return fmt.Sprintf("%s%s/%s.jsonl.gz", e.cfg.Prefix, binID, at.UTC().Format(keyTimeLayout))
}

// ExportBin writes every event of the bin, oldest first, as one gzip JSONL
// object. A bin without events still produces an (empty) object.
func (e *Exporter) ExportBin(ctx context.Context, binID string) (*Result, error) {
	if e.cfg.Bucket == "" {
		return nil, apperrors.ErrValidation.WithMessage("archive bucket is not configured")
	}

	bin, err := e.bins.GetBin(ctx, binID)
	if err != nil {
		return nil, err
	}
	if bin == nil {
		return nil, apperrors.NotFound("Bin", binID)
	}

	data, count, skipped, err := e.encode(ctx, binID)
	if err != nil {
		metrics.AddArchiveEvents("error", count)
		return nil, err
	}
	metrics.AddArchiveEvents("skipped", skipped)

	key := e.Key(binID, e.now())
	if err := e.upload(ctx, key, data); err != nil {
		metrics.AddArchiveEvents("error", count)
		return nil, err
	}

	metrics.AddArchiveEvents("success", count)
	e.logger.InfowCtx(ctx, "bin_exported",
		"bin_id", binID,
		"bucket", e.cfg.Bucket,
		"key", key,
		"events", count,
		"skipped", skipped,
		"bytes", len(data),
	)

	return &Result{Bucket: e.cfg.Bucket, Key: key, Events: count, Skipped: skipped, Bytes: len(data)}, nil
}

func (e *Exporter) encode(ctx context.Context, binID string) ([]byte, int, int, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)

	count, skipped := 0, 0
	err := e.events.ForEachEventByBin(ctx, binID, func(ev inbox.Event) error {
		if e.cfg.Filter != nil {
			ok, err := e.cfg.Filter.Match(ctx, FilterFields(ev))
			if err != nil {
				return fmt.Errorf("filter %q on event %s: %w", e.cfg.Filter, ev.ID, err)
			}
			if !ok {
				skipped++
				return nil
			}
		}
		if err := enc.Encode(NewRecord(ev)); err != nil {
			return fmt.Errorf("failed to encode event %s: %w", ev.ID, err)
		}
		count++
		return nil
	})
	if err != nil {
		_ = gz.Close()
		return nil, count, skipped, err
	}

	if err := gz.Close(); err != nil {
		return nil, count, skipped, fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return buf.Bytes(), count, skipped, nil
}

func (e *Exporter) upload(ctx context.Context, key string, data []byte) error {
	return retry.Do(ctx, e.cfg.Retry, func() error {
		putCtx, cancel := context.WithTimeout(ctx, constants.DefaultArchiveUploadTimeout)
		defer cancel()

		_, err := e.uploader.PutObject(putCtx, &s3.PutObjectInput{
			Bucket:          aws.String(e.cfg.Bucket),
			Key:             aws.String(key),
			Body:            bytes.NewReader(data),
			ContentLength:   aws.Int64(int64(len(data))),
			ContentType:     aws.String("application/x-ndjson"),
			ContentEncoding: aws.String("gzip"),
		})
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", key, err)
		}
		return nil
	}, func(attempt int, err error, next time.Duration) {
		metrics.IncRetryAttempt("archive_upload")
		e.logger.WarnwCtx(ctx, "Archive upload failed, retrying",
			"attempt", attempt,
			"key", key,
			"next_delay", next,
			"error", err,
		)
	})
}
