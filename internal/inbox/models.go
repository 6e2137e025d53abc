package inbox

import (
	"strings"
	"time"
)

// Bin is a named capture endpoint. Bins are immutable once created.
type Bin struct {
	ID        string
	Name      *string
	CreatedAt time.Time
}

// IngestURL is the public URL third parties send requests to.
func (b Bin) IngestURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/b/" + b.ID
}

// Event is one captured HTTP request. BodyB64 is the standard base64 encoding
// of the exact request body bytes.
type Event struct {
	ID          string
	BinID       string
	Method      string
	Path        string
	QueryParams map[string]string
	Headers     map[string]string
	BodyB64     string
	RemoteIP    *string
	CreatedAt   time.Time
}

func (e Event) SizeBytes() int {
	return DecodedSize(e.BodyB64)
}

type CreateBinRequest struct {
	Name *string `json:"name"`
}

type BinResponse struct {
	ID        string    `json:"id"`
	Name      *string   `json:"name"`
	IngestURL string    `json:"ingest_url"`
	CreatedAt time.Time `json:"created_at"`
}

type BinListResponse struct {
	Bins []BinResponse `json:"bins"`
}

type EventSummary struct {
	ID        string    `json:"id"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	SizeBytes int       `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

type EventListResponse struct {
	Events []EventSummary `json:"events"`
}

type EventDetail struct {
	ID          string            `json:"id"`
	BinID       string            `json:"bin_id"`
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	QueryParams map[string]string `json:"query_params"`
	Headers     map[string]string `json:"headers"`
	Body        string            `json:"body"`
	RemoteIP    *string           `json:"remote_ip"`
	SizeBytes   int               `json:"size_bytes"`
	CreatedAt   time.Time         `json:"created_at"`
}

type IngestResponse struct {
	OK      bool   `json:"ok"`
	EventID string `json:"event_id"`
}

func NewBinResponse(b Bin, baseURL string) BinResponse {
	return BinResponse{
		ID:        b.ID,
		Name:      b.Name,
		IngestURL: b.IngestURL(baseURL),
		CreatedAt: b.CreatedAt,
	}
}

func NewEventSummary(e Event) EventSummary {
	return EventSummary{
		ID:        e.ID,
		Method:    e.Method,
		Path:      e.Path,
		SizeBytes: e.SizeBytes(),
		CreatedAt: e.CreatedAt,
	}
}

func NewEventDetail(e Event) EventDetail {
	query := e.QueryParams
	if query == nil {
		query = map[string]string{}
	}
	headers := e.Headers
	if headers == nil {
		headers = map[string]string{}
	}

	return EventDetail{
		ID:          e.ID,
		BinID:       e.BinID,
		Method:      e.Method,
		Path:        e.Path,
		QueryParams: query,
		Headers:     headers,
		Body:        DisplayBody(e.BodyB64),
		RemoteIP:    e.RemoteIP,
		SizeBytes:   e.SizeBytes(),
		CreatedAt:   e.CreatedAt,
	}
}
