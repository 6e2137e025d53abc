package inbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/lib/pq"

	"nest/pkg/metrics"
)

const (
	pqForeignKeyViolation = "23503"
	pqDataException       = "22"
)

// storableText replaces NUL, which postgres rejects in both TEXT and JSONB,
// with U+FFFD.
func storableText(s string) string {
	if !strings.ContainsRune(s, 0) {
		return s
	}
	return strings.ReplaceAll(s, "\x00", "\uFFFD")
}

func classifyWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == pqForeignKeyViolation:
			return ErrBinMissing
		case pqErr.Code.Class() == pqDataException:
			return fmt.Errorf("%s: %w: %v", op, ErrUnstorable, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

type PostgresRepository struct {
	db *sql.DB
}

// NewRepository returns a repository backed by the shared pool. Every method
// runs a single statement, so each call is its own transaction.
func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ObserveDatabaseQuery(operation, status, time.Since(start))
}

func (r *PostgresRepository) CreateBin(ctx context.Context, name *string) (bin *Bin, err error) {
	defer func(start time.Time) { observe("create_bin", start, err) }(time.Now())

	b := Bin{ID: NewBinID()}
	if name != nil {
		stored := storableText(*name)
		b.Name = &stored
	}

	query := `
		INSERT INTO bins (id, name)
		VALUES ($1, $2)
		RETURNING created_at
	`

	if err := r.db.QueryRowContext(ctx, query, b.ID, b.Name).Scan(&b.CreatedAt); err != nil {
		return nil, classifyWriteError("failed to create bin", err)
	}

	return &b, nil
}

func (r *PostgresRepository) GetBin(ctx context.Context, id string) (bin *Bin, err error) {
	defer func(start time.Time) { observe("get_bin", start, err) }(time.Now())

	query := `
		SELECT id, name, created_at
		FROM bins
		WHERE id = $1
	`

	var b Bin
	err = r.db.QueryRowContext(ctx, query, id).Scan(&b.ID, &b.Name, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bin: %w", err)
	}

	return &b, nil
}

func (r *PostgresRepository) ListBins(ctx context.Context) (bins []Bin, err error) {
	defer func(start time.Time) { observe("list_bins", start, err) }(time.Now())

	query := `
		SELECT id, name, created_at
		FROM bins
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list bins: %w", err)
	}
	defer rows.Close()

	bins = make([]Bin, 0)
	for rows.Next() {
		var b Bin
		if err := rows.Scan(&b.ID, &b.Name, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bin: %w", err)
		}
		bins = append(bins, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bins: %w", err)
	}

	return bins, nil
}

func (r *PostgresRepository) CreateEvent(ctx context.Context, event *Event) (err error) {
	defer func(start time.Time) { observe("create_event", start, err) }(time.Now())

	queryJSON, err := marshalMap(event.QueryParams)
	if err != nil {
		return fmt.Errorf("failed to encode query params: %w", err)
	}
	headersJSON, err := marshalMap(event.Headers)
	if err != nil {
		return fmt.Errorf("failed to encode headers: %w", err)
	}

	id := NewEventID()

	query := `
		INSERT INTO events (id, bin_id, method, path, query_params, headers, body_b64, remote_ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	var createdAt time.Time
	err = r.db.QueryRowContext(ctx, query,
		id, event.BinID, storableText(event.Method), storableText(event.Path),
		queryJSON, headersJSON, event.BodyB64, event.RemoteIP,
	).Scan(&createdAt)
	if err != nil {
		return classifyWriteError("failed to create event", err)
	}

	event.ID = id
	event.CreatedAt = createdAt
	return nil
}

func (r *PostgresRepository) GetEvent(ctx context.Context, id string) (event *Event, err error) {
	defer func(start time.Time) { observe("get_event", start, err) }(time.Now())

	query := `
		SELECT id, bin_id, method, path, query_params, headers, body_b64, remote_ip, created_at
		FROM events
		WHERE id = $1
	`

	e, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return e, nil
}

func (r *PostgresRepository) ListEventsByBin(ctx context.Context, binID string, limit int) (events []Event, err error) {
	defer func(start time.Time) { observe("list_events", start, err) }(time.Now())

	query := `
		SELECT id, bin_id, method, path, query_params, headers, body_b64, remote_ip, created_at
		FROM events
		WHERE bin_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, binID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events = make([]Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}

func (r *PostgresRepository) ForEachEventByBin(ctx context.Context, binID string, fn func(Event) error) (err error) {
	defer func(start time.Time) { observe("stream_events", start, err) }(time.Now())

	query := `
		SELECT id, bin_id, method, path, query_params, headers, body_b64, remote_ip, created_at
		FROM events
		WHERE bin_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, binID)
	if err != nil {
		return fmt.Errorf("failed to stream events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return fmt.Errorf("failed to scan event: %w", err)
		}
		if err := fn(*e); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate events: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		e           Event
		queryJSON   []byte
		headersJSON []byte
	)

	if err := row.Scan(
		&e.ID, &e.BinID, &e.Method, &e.Path,
		&queryJSON, &headersJSON, &e.BodyB64, &e.RemoteIP, &e.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(queryJSON, &e.QueryParams); err != nil {
		return nil, fmt.Errorf("failed to decode query params: %w", err)
	}
	if err := json.Unmarshal(headersJSON, &e.Headers); err != nil {
		return nil, fmt.Errorf("failed to decode headers: %w", err)
	}

	return &e, nil
}

func marshalMap(m map[string]string) (string, error) {
	if m == nil {
		return "{}", nil
	}
	stored := make(map[string]string, len(m))
	for k, v := range m {
		stored[storableText(k)] = storableText(v)
	}
	b, err := json.Marshal(stored)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
