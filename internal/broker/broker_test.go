package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nest/internal/config"
	"nest/internal/logger"
	"nest/pkg/models"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakeRedis struct {
	channel string
	payload []byte
	err     error
}

func (r *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	r.channel = channel
	r.payload, _ = message.([]byte)
	return redis.NewIntResult(1, r.err)
}

func testNotice() models.EventNotice {
	return models.NewEventNoticeBuilder().
		WithEvent("e_abc", "b_xyz").
		WithRequest("POST", "hook", 5).
		WithCreatedAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)).
		Build()
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, "", logger.NopLogger())

	require.NoError(t, p.Publish(context.Background(), testNotice()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "captured_events", msg.Topic)
	assert.Equal(t, []byte("b_xyz"), msg.Key)

	var decoded models.EventNotice
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "e_abc", decoded.EventID)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := newKafkaPublisher(w, "notices", logger.NopLogger())

	err := p.Publish(context.Background(), testNotice())
	assert.ErrorContains(t, err, "leader not available")
}

func TestRedisPublisher_Publish(t *testing.T) {
	r := &fakeRedis{}
	p := NewRedisPublisher(r, "", logger.NopLogger())

	require.NoError(t, p.Publish(context.Background(), testNotice()))
	assert.Equal(t, "nest:bin:b_xyz", r.channel)
	assert.Contains(t, string(r.payload), `"event_id":"e_abc"`)

	r.err = errors.New("connection reset")
	assert.Error(t, p.Publish(context.Background(), testNotice()))
}

func TestNewPublisher(t *testing.T) {
	p, err := NewPublisher(config.NotifierConfig{Type: "none"}, nil, logger.NopLogger())
	require.NoError(t, err)
	assert.Equal(t, "none", p.Name())

	_, err = NewPublisher(config.NotifierConfig{Type: "redis"}, nil, logger.NopLogger())
	assert.Error(t, err)

	_, err = NewPublisher(config.NotifierConfig{Type: "sqs"}, nil, logger.NopLogger())
	assert.Error(t, err)
}

func TestPublishers_RejectInvalidNotice(t *testing.T) {
	w := &fakeWriter{}
	kp := newKafkaPublisher(w, "", logger.NopLogger())
	assert.Error(t, kp.Publish(context.Background(), models.EventNotice{BinID: "b_xyz"}))
	assert.Empty(t, w.msgs)

	r := &fakeRedis{}
	rp := NewRedisPublisher(r, "", logger.NopLogger())
	assert.Error(t, rp.Publish(context.Background(), models.EventNotice{}))
	assert.Empty(t, r.channel)
}
