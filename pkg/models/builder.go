package models

import "time"

type EventNoticeBuilder struct {
	notice *EventNotice
}

func NewEventNoticeBuilder() *EventNoticeBuilder {
	return &EventNoticeBuilder{
		notice: &EventNotice{Source: NoticeSource},
	}
}

func (b *EventNoticeBuilder) WithEvent(eventID, binID string) *EventNoticeBuilder {
	b.notice.EventID = eventID
	b.notice.BinID = binID
	return b
}

func (b *EventNoticeBuilder) WithRequest(method, path string, sizeBytes int) *EventNoticeBuilder {
	b.notice.Method = method
	b.notice.Path = path
	b.notice.SizeBytes = sizeBytes
	return b
}

func (b *EventNoticeBuilder) WithRemoteIP(remoteIP *string) *EventNoticeBuilder {
	b.notice.RemoteIP = remoteIP
	return b
}

func (b *EventNoticeBuilder) WithCreatedAt(createdAt time.Time) *EventNoticeBuilder {
	b.notice.CreatedAt = createdAt
	return b
}

func (b *EventNoticeBuilder) WithTraceID(traceID string) *EventNoticeBuilder {
	b.notice.TraceID = traceID
	return b
}

func (b *EventNoticeBuilder) Build() EventNotice {
	if b.notice.CreatedAt.IsZero() {
		b.notice.CreatedAt = time.Now().UTC()
	}
	return *b.notice
}
