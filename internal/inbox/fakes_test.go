package inbox

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"nest/pkg/models"
)

// memoryStore is an in-memory BinRepository and EventRepository with the same
// ordering rules as the postgres implementation.
type memoryStore struct {
	mu     sync.Mutex
	bins   map[string]Bin
	events map[string]Event
	clock  time.Time

	getBinCalls int
	failWith    error
	// dropBinBeforeInsert simulates the bin vanishing between lookup and insert.
	dropBinBeforeInsert bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		bins:   make(map[string]Bin),
		events: make(map[string]Event),
		clock:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *memoryStore) now() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func (s *memoryStore) CreateBin(_ context.Context, name *string) (*Bin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	b := Bin{ID: NewBinID(), Name: name, CreatedAt: s.now()}
	s.bins[b.ID] = b
	return &b, nil
}

func (s *memoryStore) GetBin(_ context.Context, id string) (*Bin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getBinCalls++
	if s.failWith != nil {
		return nil, s.failWith
	}
	b, ok := s.bins[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *memoryStore) ListBins(_ context.Context) ([]Bin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	out := make([]Bin, 0, len(s.bins))
	for _, b := range s.bins {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memoryStore) CreateEvent(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if s.dropBinBeforeInsert {
		delete(s.bins, event.BinID)
	}
	if _, ok := s.bins[event.BinID]; !ok {
		return ErrBinMissing
	}
	event.ID = NewEventID()
	event.CreatedAt = s.now()
	s.events[event.ID] = *event
	return nil
}

func (s *memoryStore) GetEvent(_ context.Context, id string) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	e, ok := s.events[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *memoryStore) sortedEvents(binID string, newestFirst bool) []Event {
	out := make([]Event, 0)
	for _, e := range s.events {
		if e.BinID == binID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return (out[i].ID > out[j].ID) == newestFirst
		}
		return out[i].CreatedAt.After(out[j].CreatedAt) == newestFirst
	})
	return out
}

func (s *memoryStore) ListEventsByBin(_ context.Context, binID string, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	out := s.sortedEvents(binID, true)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) ForEachEventByBin(_ context.Context, binID string, fn func(Event) error) error {
	s.mu.Lock()
	events := s.sortedEvents(binID, false)
	s.mu.Unlock()
	for _, e := range events {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *memoryStore) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []models.EventNotice
	err     error
}

func (n *recordingNotifier) Publish(_ context.Context, notice models.EventNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.notices = append(n.notices, notice)
	return nil
}

func (n *recordingNotifier) Name() string { return "recording" }

var errStoreDown = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")
