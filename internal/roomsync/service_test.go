package roomsync

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jason-s-yu/gomoku/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() *logrus.Entry {
	return logrus.WithField("test", true)
}

// collidingStore reports the first n room codes as taken.
type collidingStore struct {
	*MemoryStore
	collisions int
	attempts   int
}

func (s *collidingStore) Create(ctx context.Context, doc models.RoomDoc) error {
	s.attempts++
	if s.attempts <= s.collisions {
		return ErrRoomExists
	}
	return s.MemoryStore.Create(ctx, doc)
}

func TestNewRoomID(t *testing.T) {
	for i := 0; i < 50; i++ {
		id, err := NewRoomID()
		require.NoError(t, err)
		require.Len(t, id, RoomIDLength)
		for _, r := range id {
			assert.True(t, strings.ContainsRune(RoomIDAlphabet, r), "unexpected %q in %s", r, id)
		}
	}
}

func TestCreateRoom(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	doc, err := svc.CreateRoom(ctx, "alice", nil)
	require.NoError(t, err)
	assert.Len(t, doc.ID, RoomIDLength)
	assert.Equal(t, 0, doc.Version)
	assert.Equal(t, 1, doc.Turn)
	assert.Equal(t, "alice", doc.Players.Get(1))
	assert.Empty(t, doc.Players.Get(2))
	assert.False(t, doc.HasState())

	doc, err = svc.CreateRoom(ctx, "alice", json.RawMessage(`{"turn":3}`))
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Turn)
	assert.True(t, doc.HasState())

	_, err = svc.CreateRoom(ctx, "", nil)
	assert.Error(t, err)
}

func TestCreateRoomRetriesCollisions(t *testing.T) {
	store := &collidingStore{MemoryStore: NewMemoryStore(), collisions: 2}
	svc := NewService(store)

	_, err := svc.CreateRoom(context.Background(), "alice", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, store.attempts)

	store = &collidingStore{MemoryStore: NewMemoryStore(), collisions: maxCreateAttempts}
	_, err = NewService(store).CreateRoom(context.Background(), "alice", nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestJoinRoom(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()
	room, err := svc.CreateRoom(ctx, "alice", nil)
	require.NoError(t, err)

	doc, seat, err := svc.JoinRoom(ctx, room.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, seat)
	assert.Equal(t, "bob", doc.Players.Get(2))

	_, _, err = svc.JoinRoom(ctx, room.ID, "carol")
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, "room full", err.Error())

	_, _, err = svc.JoinRoom(ctx, "ZZZZZZ", "carol")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestPublishMirrorsTurn(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()
	room, err := svc.CreateRoom(ctx, "alice", nil)
	require.NoError(t, err)

	doc, err := svc.Publish(ctx, room.ID, 0, json.RawMessage(`{"turn":2}`))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, 2, doc.Turn)

	doc, err = svc.Publish(ctx, room.ID, 1, json.RawMessage(`{"size":15}`))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Version)
	assert.Equal(t, 2, doc.Turn, "a snapshot without a turn keeps the stored one")

	_, err = svc.Publish(ctx, room.ID, 1, json.RawMessage(`{"turn":9}`))
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestTurnOf(t *testing.T) {
	assert.Equal(t, 0, turnOf(nil))
	assert.Equal(t, 0, turnOf(json.RawMessage(`null`)))
	assert.Equal(t, 0, turnOf(json.RawMessage(`not json`)))
	assert.Equal(t, 7, turnOf(json.RawMessage(`{"turn":7}`)))
}
