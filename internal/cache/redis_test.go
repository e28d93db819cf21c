package cache

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishGameAction(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := ConnectRedis(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() {
		client.Close()
		Rdb = nil
	})

	rec := GameActionRecord{
		GameID:        uuid.New(),
		ActionIndex:   3,
		ActorSeat:     2,
		ActionType:    "place",
		ActionPayload: map[string]interface{}{"x": 7, "y": 7},
		Timestamp:     1700000000000,
	}
	require.NoError(t, PublishGameAction(context.Background(), rec))

	items, err := mr.List(ActionQueueKey)
	require.NoError(t, err)
	require.Len(t, items, 1)

	var got GameActionRecord
	require.NoError(t, json.Unmarshal([]byte(items[0]), &got))
	assert.Equal(t, rec.GameID, got.GameID)
	assert.Equal(t, "place", got.ActionType)
	assert.Equal(t, 2, got.ActorSeat)
}

func TestPublishGameActionWithoutRedis(t *testing.T) {
	Rdb = nil
	assert.Error(t, PublishGameAction(context.Background(), GameActionRecord{}))
}

func TestConnectRedisBadURL(t *testing.T) {
	_, err := ConnectRedis(context.Background(), "not-a-url://")
	assert.Error(t, err)
}
