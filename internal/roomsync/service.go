package roomsync

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/jason-s-yu/gomoku/internal/models"
	"github.com/sirupsen/logrus"
)

// RoomIDAlphabet omits characters that are easy to misread (I, O, 0, 1).
const RoomIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	RoomIDLength      = 6
	maxCreateAttempts = 5
)

// Service implements the room operations on top of a Store.
type Service struct {
	store Store
	log   *logrus.Entry
}

func NewService(store Store) *Service {
	return &Service{store: store, log: logrus.WithField("component", "rooms")}
}

// NewRoomID returns a random room code.
func NewRoomID() (string, error) {
	max := big.NewInt(int64(len(RoomIDAlphabet)))
	b := make([]byte, RoomIDLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = RoomIDAlphabet[n.Int64()]
	}
	return string(b), nil
}

// CreateRoom makes a room with identity in seat 1. state is the creator's
// current snapshot and may be nil.
func (s *Service) CreateRoom(ctx context.Context, identity string, state json.RawMessage) (models.RoomDoc, error) {
	if identity == "" {
		return models.RoomDoc{}, errors.New("identity required")
	}
	for i := 0; i < maxCreateAttempts; i++ {
		id, err := NewRoomID()
		if err != nil {
			return models.RoomDoc{}, fmt.Errorf("room id: %w", err)
		}
		doc := models.RoomDoc{
			ID:      id,
			Version: 0,
			Players: models.Seats{identity, ""},
			Turn:    1,
			State:   state,
		}
		if t := turnOf(state); t > 0 {
			doc.Turn = t
		}
		err = s.store.Create(ctx, doc)
		if errors.Is(err, ErrRoomExists) {
			s.log.Debugf("room code %s taken, retrying", id)
			continue
		}
		if err != nil {
			return models.RoomDoc{}, err
		}
		s.log.Infof("room %s created by %s", id, identity)
		return s.store.Get(ctx, id)
	}
	return models.RoomDoc{}, fmt.Errorf("%w: no free room code after %d attempts", ErrUnavailable, maxCreateAttempts)
}

// JoinRoom seats identity in roomID and returns the seat. Rejoining returns
// the seat already held.
func (s *Service) JoinRoom(ctx context.Context, roomID, identity string) (models.RoomDoc, int, error) {
	if identity == "" {
		return models.RoomDoc{}, 0, errors.New("identity required")
	}
	doc, seat, err := s.store.ClaimSeat(ctx, roomID, identity)
	if err != nil {
		return models.RoomDoc{}, 0, err
	}
	s.log.Infof("%s holds seat %d in room %s", identity, seat, roomID)
	return doc, seat, nil
}

// Publish writes state iff the room is still at version expected. The stored
// turn mirrors the snapshot's turn.
func (s *Service) Publish(ctx context.Context, roomID string, expected int, state json.RawMessage) (models.RoomDoc, error) {
	doc, err := s.store.CompareAndSwap(ctx, roomID, expected, state, turnOf(state))
	if errors.Is(err, ErrVersionConflict) {
		s.log.Debugf("stale publish to room %s at v%d", roomID, expected)
	}
	return doc, err
}

func (s *Service) Get(ctx context.Context, roomID string) (models.RoomDoc, error) {
	return s.store.Get(ctx, roomID)
}

func (s *Service) Subscribe(ctx context.Context, roomID string) (<-chan models.RoomDoc, func(), error) {
	return s.store.Subscribe(ctx, roomID)
}

// turnOf reads the turn counter out of a serialized snapshot, or 0.
func turnOf(state json.RawMessage) int {
	if len(state) == 0 {
		return 0
	}
	var probe struct {
		Turn int `json:"turn"`
	}
	if err := json.Unmarshal(state, &probe); err != nil {
		return 0
	}
	return probe.Turn
}
