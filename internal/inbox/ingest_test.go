package inbox

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nest/internal/logger"
	apperrors "nest/pkg/errors"
)

func newTestPipeline(store *memoryStore, notifier Notifier, maxSize int64) *IngestPipeline {
	return NewIngestPipeline(store, store, notifier, IngestConfig{MaxBodySize: maxSize}, logger.NopLogger())
}

func seedBin(t *testing.T, store *memoryStore) *Bin {
	t.Helper()
	bin, err := store.CreateBin(context.Background(), nil)
	require.NoError(t, err)
	return bin
}

func TestIngest_CapturesRequest(t *testing.T) {
	store := newMemoryStore()
	notifier := &recordingNotifier{}
	pipeline := newTestPipeline(store, notifier, 1024)
	bin := seedBin(t, store)
	ip := "203.0.113.7"

	header := http.Header{}
	header.Add("X-Foo", "bar")
	header.Add("X-Multi", "first")
	header.Add("X-Multi", "second")
	header.Set("Content-Type", "application/json")

	result, err := pipeline.Ingest(context.Background(), IngestRequest{
		BinID:         bin.ID,
		Method:        "post",
		Path:          "hook/deep",
		Query:         url.Values{"q": {"1"}, "dup": {"a", "b"}},
		Header:        header,
		ContentLength: 9,
		Body:          strings.NewReader(`{"k":"v"}`),
		RemoteIP:      &ip,
	})
	require.NoError(t, err)
	require.Equal(t, IngestCaptured, result.Status)
	require.NotNil(t, result.Event)

	stored, err := store.GetEvent(context.Background(), result.Event.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	assert.True(t, strings.HasPrefix(stored.ID, "e_"))
	assert.Equal(t, bin.ID, stored.BinID)
	assert.Equal(t, "POST", stored.Method)
	assert.Equal(t, "hook/deep", stored.Path)
	assert.Equal(t, map[string]string{"q": "1", "dup": "b"}, stored.QueryParams)
	assert.Equal(t, "bar", stored.Headers["x-foo"])
	assert.Equal(t, "first", stored.Headers["x-multi"])
	assert.Equal(t, "application/json", stored.Headers["content-type"])
	assert.Equal(t, 9, stored.SizeBytes())
	assert.Equal(t, &ip, stored.RemoteIP)

	require.Len(t, notifier.notices, 1)
	assert.Equal(t, stored.ID, notifier.notices[0].EventID)
	assert.Equal(t, bin.ID, notifier.notices[0].BinID)
	assert.Equal(t, 9, notifier.notices[0].SizeBytes)
}

func TestIngest_BodyExactlyAtLimit(t *testing.T) {
	store := newMemoryStore()
	pipeline := newTestPipeline(store, nil, 16)
	bin := seedBin(t, store)

	body := bytes.Repeat([]byte("a"), 16)
	result, err := pipeline.Ingest(context.Background(), IngestRequest{
		BinID:         bin.ID,
		Method:        http.MethodPost,
		ContentLength: -1,
		Body:          bytes.NewReader(body),
	})
	require.NoError(t, err)
	assert.Equal(t, IngestCaptured, result.Status)
	assert.Equal(t, 16, result.Event.SizeBytes())
}

func TestIngest_BodyOverLimitReportsTrueSize(t *testing.T) {
	store := newMemoryStore()
	pipeline := newTestPipeline(store, nil, 16)
	bin := seedBin(t, store)

	result, err := pipeline.Ingest(context.Background(), IngestRequest{
		BinID:         bin.ID,
		Method:        http.MethodPost,
		ContentLength: -1,
		Body:          bytes.NewReader(bytes.Repeat([]byte("a"), 100)),
	})
	require.NoError(t, err)
	assert.Equal(t, IngestPayloadTooLarge, result.Status)
	assert.Equal(t, int64(16), result.MaxSize)
	assert.Equal(t, int64(100), result.ActualSize)
	assert.False(t, result.Declared)
	assert.Equal(t, 0, store.eventCount())

	rejection := result.Err(bin.ID)
	require.NotNil(t, rejection)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rejection.Status)
}

type countingReader struct {
	read int
}

func (r *countingReader) Read(p []byte) (int, error) {
	r.read += len(p)
	return len(p), nil
}

func TestIngest_DeclaredLengthRejectedWithoutReading(t *testing.T) {
	store := newMemoryStore()
	pipeline := newTestPipeline(store, nil, 16)
	bin := seedBin(t, store)
	body := &countingReader{}

	result, err := pipeline.Ingest(context.Background(), IngestRequest{
		BinID:         bin.ID,
		Method:        http.MethodPut,
		ContentLength: 17,
		Body:          body,
	})
	require.NoError(t, err)
	assert.Equal(t, IngestPayloadTooLarge, result.Status)
	assert.True(t, result.Declared)
	assert.Equal(t, int64(17), result.ActualSize)
	assert.Zero(t, body.read)
	assert.Zero(t, store.getBinCalls)
}

func TestIngest_OversizeCheckedBeforeBinLookup(t *testing.T) {
	store := newMemoryStore()
	pipeline := newTestPipeline(store, nil, 4)

	result, err := pipeline.Ingest(context.Background(), IngestRequest{
		BinID:         "b_missing",
		Method:        http.MethodPost,
		ContentLength: -1,
		Body:          strings.NewReader("too large"),
	})
	require.NoError(t, err)
	assert.Equal(t, IngestPayloadTooLarge, result.Status)
	assert.Zero(t, store.getBinCalls)
}

func TestIngest_UnknownBin(t *testing.T) {
	store := newMemoryStore()
	notifier := &recordingNotifier{}
	pipeline := newTestPipeline(store, notifier, 1024)

	result, err := pipeline.Ingest(context.Background(), IngestRequest{
		BinID:  "b_missing",
		Method: http.MethodGet,
	})
	require.NoError(t, err)
	assert.Equal(t, IngestBinNotFound, result.Status)
	assert.Zero(t, store.eventCount())
	assert.Empty(t, notifier.notices)

	rejection := result.Err("b_missing")
	require.NotNil(t, rejection)
	assert.Equal(t, "Bin 'b_missing' not found", rejection.Message)
}

func TestIngest_BinVanishesBeforeInsert(t *testing.T) {
	store := newMemoryStore()
	pipeline := newTestPipeline(store, nil, 1024)
	bin := seedBin(t, store)
	store.dropBinBeforeInsert = true

	result, err := pipeline.Ingest(context.Background(), IngestRequest{
		BinID:  bin.ID,
		Method: http.MethodPost,
		Body:   strings.NewReader("x"),
	})
	require.NoError(t, err)
	assert.Equal(t, IngestBinNotFound, result.Status)
}

func TestIngest_EmptyBodyAndBinaryBody(t *testing.T) {
	store := newMemoryStore()
	pipeline := newTestPipeline(store, nil, 1024)
	bin := seedBin(t, store)

	empty, err := pipeline.Ingest(context.Background(), IngestRequest{BinID: bin.ID, Method: http.MethodGet})
	require.NoError(t, err)
	assert.Equal(t, "", empty.Event.BodyB64)
	assert.Equal(t, 0, empty.Event.SizeBytes())

	raw := allBytes()
	binary, err := pipeline.Ingest(context.Background(), IngestRequest{
		BinID:  bin.ID,
		Method: http.MethodPost,
		Body:   bytes.NewReader(raw),
	})
	require.NoError(t, err)
	decoded, err := DecodeBody(binary.Event.BodyB64)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
	assert.Equal(t, 256, binary.Event.SizeBytes())
}

func TestIngest_NotifierFailureDoesNotFailCapture(t *testing.T) {
	store := newMemoryStore()
	notifier := &recordingNotifier{err: errors.New("broker unavailable")}
	pipeline := newTestPipeline(store, notifier, 1024)
	bin := seedBin(t, store)

	result, err := pipeline.Ingest(context.Background(), IngestRequest{BinID: bin.ID, Method: http.MethodPost})
	require.NoError(t, err)
	assert.Equal(t, IngestCaptured, result.Status)
	assert.Equal(t, 1, store.eventCount())
}

func TestIngest_StoreFailureIsReturned(t *testing.T) {
	store := newMemoryStore()
	pipeline := newTestPipeline(store, nil, 1024)
	bin := seedBin(t, store)
	store.failWith = errStoreDown

	_, err := pipeline.Ingest(context.Background(), IngestRequest{BinID: bin.ID, Method: http.MethodPost})
	require.Error(t, err)
	assert.ErrorIs(t, err, errStoreDown)
}

func TestIngest_CancelledContextWhileReading(t *testing.T) {
	store := newMemoryStore()
	pipeline := newTestPipeline(store, nil, 1024)
	bin := seedBin(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.Ingest(ctx, IngestRequest{
		BinID:  bin.ID,
		Method: http.MethodPost,
		Body:   strings.NewReader("payload"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.Zero(t, store.eventCount())
}

func TestNormalizeHeaders(t *testing.T) {
	h := http.Header{
		"X-Foo":   {"a", "b"},
		"x-empty": {},
	}
	assert.Equal(t, map[string]string{"x-foo": "a"}, NormalizeHeaders(h))
	assert.Empty(t, NormalizeHeaders(nil))
}

func TestNormalizeQuery(t *testing.T) {
	q := url.Values{"a": {"1", "2", "3"}, "b": {""}}
	assert.Equal(t, map[string]string{"a": "3", "b": ""}, NormalizeQuery(q))
}
