package roomsync

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jason-s-yu/gomoku/internal/models"
	"github.com/sirupsen/logrus"
)

// MemoryStore keeps rooms in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]models.RoomDoc
	hub   *hub
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]models.RoomDoc),
		hub:   newHub(logrus.WithField("store", "memory")),
		now:   time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, doc models.RoomDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[doc.ID]; ok {
		return ErrRoomExists
	}
	now := s.now()
	doc.CreatedAt, doc.UpdatedAt = now, now
	s.rooms[doc.ID] = doc.Clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (models.RoomDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.rooms[id]
	if !ok {
		return models.RoomDoc{}, ErrRoomNotFound
	}
	return doc.Clone(), nil
}

func (s *MemoryStore) ClaimSeat(ctx context.Context, id, identity string) (models.RoomDoc, int, error) {
	s.mu.Lock()
	doc, ok := s.rooms[id]
	if !ok {
		s.mu.Unlock()
		return models.RoomDoc{}, 0, ErrRoomNotFound
	}
	if seat := doc.Players.SeatOf(identity); seat != 0 {
		s.mu.Unlock()
		return doc.Clone(), seat, nil
	}
	seat := doc.Players.FirstFree()
	if seat == 0 {
		s.mu.Unlock()
		return models.RoomDoc{}, 0, ErrRoomFull
	}
	doc.Players[seat-1] = identity
	doc.UpdatedAt = s.now()
	s.rooms[id] = doc
	out := doc.Clone()
	s.mu.Unlock()

	s.hub.publish(out)
	return out, seat, nil
}

func (s *MemoryStore) CompareAndSwap(ctx context.Context, id string, expected int, state json.RawMessage, turn int) (models.RoomDoc, error) {
	s.mu.Lock()
	doc, ok := s.rooms[id]
	if !ok {
		s.mu.Unlock()
		return models.RoomDoc{}, ErrRoomNotFound
	}
	if doc.Version != expected {
		s.mu.Unlock()
		return models.RoomDoc{}, ErrVersionConflict
	}
	doc.State = append(json.RawMessage(nil), state...)
	doc.Version++
	if turn > 0 {
		doc.Turn = turn
	}
	doc.UpdatedAt = s.now()
	s.rooms[id] = doc
	out := doc.Clone()
	s.mu.Unlock()

	s.hub.publish(out)
	return out, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, id string) (<-chan models.RoomDoc, func(), error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.subscribe(ctx, id)
	return ch, cancel, nil
}

func (s *MemoryStore) Close() error {
	s.hub.close()
	return nil
}
