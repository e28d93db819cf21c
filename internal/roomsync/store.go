// Package roomsync shares one game between two remote clients through a
// versioned room document. Writes are optimistic: a publish names the version
// it was computed from and is rejected if the stored version has moved on.
package roomsync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/jason-s-yu/gomoku/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrVersionConflict = errors.New("room version conflict")
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room full")
	ErrRoomExists      = errors.New("room already exists")
	ErrUnavailable     = errors.New("room service unavailable")
)

// Store persists room documents.
//
// CompareAndSwap is the only way to change State. It applies iff the stored
// version equals expected, bumps the version by one, and leaves the document
// untouched otherwise. A turn of 0 keeps the stored turn.
//
// Subscribe streams the document after every accepted write or seat claim.
// Slow consumers may miss intermediate documents but always see a later one.
type Store interface {
	Create(ctx context.Context, doc models.RoomDoc) error
	Get(ctx context.Context, id string) (models.RoomDoc, error)
	ClaimSeat(ctx context.Context, id, identity string) (models.RoomDoc, int, error)
	CompareAndSwap(ctx context.Context, id string, expected int, state json.RawMessage, turn int) (models.RoomDoc, error)
	Subscribe(ctx context.Context, id string) (<-chan models.RoomDoc, func(), error)
	Close() error
}

const subscriberBuffer = 16

// hub fans documents out to in-process subscribers.
type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan models.RoomDoc
	closed bool
	log    *logrus.Entry
}

func newHub(log *logrus.Entry) *hub {
	return &hub{subs: make(map[string]map[int]chan models.RoomDoc), log: log}
}

// subscribe registers a channel for room id. The returned cancel func is
// idempotent and also runs when ctx ends.
func (h *hub) subscribe(ctx context.Context, id string) (<-chan models.RoomDoc, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan models.RoomDoc, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.nextID++
	key := h.nextID
	if h.subs[id] == nil {
		h.subs[id] = make(map[int]chan models.RoomDoc)
	}
	h.subs[id][key] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id][key]; ok {
				delete(h.subs[id], key)
				if len(h.subs[id]) == 0 {
					delete(h.subs, id)
				}
				close(c)
			}
		})
	}
	stop := context.AfterFunc(ctx, cancel)
	return ch, func() {
		stop()
		cancel()
	}
}

// publish delivers doc to every subscriber of doc.ID without blocking. A full
// subscriber loses its oldest pending document.
func (h *hub) publish(doc models.RoomDoc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[doc.ID] {
		d := doc.Clone()
		select {
		case ch <- d:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- d:
		default:
			h.log.Warnf("dropping update v%d for a stalled subscriber of room %s", doc.Version, doc.ID)
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, m := range h.subs {
		for _, ch := range m {
			close(ch)
		}
		delete(h.subs, id)
	}
}
