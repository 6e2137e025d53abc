package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventNoticeBuilder(t *testing.T) {
	ip := "203.0.113.7"
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	n := NewEventNoticeBuilder().
		WithEvent("e_1", "b_1").
		WithRequest("POST", "github/push", 12).
		WithRemoteIP(&ip).
		WithCreatedAt(created).
		Build()

	assert.Equal(t, NoticeSource, n.Source)
	assert.Equal(t, "github/push", n.Path)
	assert.Equal(t, created, n.CreatedAt)
	assert.NoError(t, n.Validate())
}

func TestEventNotice_Validate(t *testing.T) {
	err := EventNotice{BinID: "b_1", Method: "GET", CreatedAt: time.Now()}.Validate()
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, "event_id", vErr.Field)

	assert.Error(t, NewEventNoticeBuilder().WithEvent("e_1", "b_1").Build().Validate())
}
