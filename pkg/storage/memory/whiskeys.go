package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/whiskey"
)

// WhiskeyStore is a mutex-guarded whiskey.Store.
type WhiskeyStore struct {
	mu       sync.RWMutex
	whiskeys map[int64]*whiskey.Whiskey
	nextID   int64
}

// NewWhiskeyStore creates an empty store.
func NewWhiskeyStore() *WhiskeyStore {
	return &WhiskeyStore{whiskeys: make(map[int64]*whiskey.Whiskey), nextID: 1}
}

func (s *WhiskeyStore) List(ctx context.Context) ([]*whiskey.Whiskey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*whiskey.Whiskey, 0, len(s.whiskeys))
	for _, w := range s.whiskeys {
		c := *w
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *WhiskeyStore) Get(ctx context.Context, id int64) (*whiskey.Whiskey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.whiskeys[id]
	if !ok {
		return nil, whiskey.ErrNotFound
	}
	c := *w
	return &c, nil
}

func (s *WhiskeyStore) Create(ctx context.Context, in whiskey.Input, createdBy int64) (*whiskey.Whiskey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	w := &whiskey.Whiskey{ID: s.nextID, CreatedBy: createdBy, CreatedAt: now}
	apply(w, in, now)
	s.whiskeys[w.ID] = w
	s.nextID++

	c := *w
	return &c, nil
}

func (s *WhiskeyStore) Update(ctx context.Context, id int64, in whiskey.Input) (*whiskey.Whiskey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.whiskeys[id]
	if !ok {
		return nil, whiskey.ErrNotFound
	}
	apply(w, in, time.Now().UTC())

	c := *w
	return &c, nil
}

func (s *WhiskeyStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.whiskeys[id]; !ok {
		return whiskey.ErrNotFound
	}
	delete(s.whiskeys, id)
	return nil
}

func apply(w *whiskey.Whiskey, in whiskey.Input, now time.Time) {
	w.Name = in.Name
	w.Distillery = in.Distillery
	w.Type = in.Type
	w.Region = in.Region
	w.AgeYears = in.AgeYears
	w.ABV = in.ABV
	w.Notes = in.Notes
	w.UpdatedAt = now
}
