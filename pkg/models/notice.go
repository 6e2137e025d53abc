package models

import "time"

const NoticeSource = "nest-server"

// EventNotice announces that an event was captured. It carries metadata only;
// subscribers fetch the full event through the admin API.
type EventNotice struct {
	EventID   string    `json:"event_id"`
	BinID     string    `json:"bin_id"`
	Source    string    `json:"source"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	SizeBytes int       `json:"size_bytes"`
	RemoteIP  *string   `json:"remote_ip"`
	CreatedAt time.Time `json:"created_at"`
	TraceID   string    `json:"trace_id,omitempty"`
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "notice " + e.Field + ": " + e.Message
}

// Validate rejects notices that subscribers could not resolve back to an
// event.
func (n EventNotice) Validate() error {
	switch {
	case n.EventID == "":
		return &ValidationError{Field: "event_id", Message: "is required"}
	case n.BinID == "":
		return &ValidationError{Field: "bin_id", Message: "is required"}
	case n.Method == "":
		return &ValidationError{Field: "method", Message: "is required"}
	case n.CreatedAt.IsZero():
		return &ValidationError{Field: "created_at", Message: "is required"}
	case n.SizeBytes < 0:
		return &ValidationError{Field: "size_bytes", Message: "must not be negative"}
	}
	return nil
}
