package roomsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/gomoku/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	redisRoomPrefix = "gomoku:room:"
	maxTxRetries    = 8
)

// RedisStore keeps each room as a JSON string and fans updates out over
// pub/sub, so several server processes can share rooms.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	log *logrus.Entry
}

// NewRedisStore wraps an existing client. Rooms expire ttl after their last
// write; zero keeps them forever.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, log: logrus.WithField("store", "redis")}
}

func roomKey(id string) string { return redisRoomPrefix + id }
func updatesChannel(id string) string { return redisRoomPrefix + id + ":updates" }

func (s *RedisStore) Create(ctx context.Context, doc models.RoomDoc) error {
	now := time.Now().UTC()
	doc.CreatedAt, doc.UpdatedAt = now, now
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, roomKey(doc.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return ErrRoomExists
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (models.RoomDoc, error) {
	return s.read(ctx, s.rdb, id)
}

func (s *RedisStore) read(ctx context.Context, c redis.Cmdable, id string) (models.RoomDoc, error) {
	data, err := c.Get(ctx, roomKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.RoomDoc{}, ErrRoomNotFound
	}
	if err != nil {
		return models.RoomDoc{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var doc models.RoomDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.RoomDoc{}, fmt.Errorf("decode room %s: %w", id, err)
	}
	return doc, nil
}

// update runs fn against the stored document inside WATCH/MULTI and retries
// when another writer touched the key in between. fn reports whether it
// changed the document.
func (s *RedisStore) update(ctx context.Context, id string, fn func(doc *models.RoomDoc) (bool, error)) (models.RoomDoc, error) {
	key := roomKey(id)
	var out models.RoomDoc
	var wrote bool
	txf := func(tx *redis.Tx) error {
		doc, err := s.read(ctx, tx, id)
		if err != nil {
			return err
		}
		write, err := fn(&doc)
		if err != nil {
			return err
		}
		wrote = write
		if !write {
			out = doc
			return nil
		}
		doc.UpdatedAt = time.Now().UTC()
		out = doc
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal room: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return models.RoomDoc{}, err
		}
		if wrote {
			s.notify(ctx, out)
		}
		return out, nil
	}
	return models.RoomDoc{}, fmt.Errorf("%w: room %s kept changing", ErrUnavailable, id)
}

func (s *RedisStore) notify(ctx context.Context, doc models.RoomDoc) {
	data, err := json.Marshal(doc)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, updatesChannel(doc.ID), data).Err(); err != nil {
		s.log.WithError(err).Warnf("failed publishing update for room %s", doc.ID)
	}
}

func (s *RedisStore) ClaimSeat(ctx context.Context, id, identity string) (models.RoomDoc, int, error) {
	var seat int
	doc, err := s.update(ctx, id, func(doc *models.RoomDoc) (bool, error) {
		if seat = doc.Players.SeatOf(identity); seat != 0 {
			return false, nil
		}
		if seat = doc.Players.FirstFree(); seat == 0 {
			return false, ErrRoomFull
		}
		doc.Players[seat-1] = identity
		return true, nil
	})
	if err != nil {
		return models.RoomDoc{}, 0, err
	}
	return doc, seat, nil
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, id string, expected int, state json.RawMessage, turn int) (models.RoomDoc, error) {
	return s.update(ctx, id, func(doc *models.RoomDoc) (bool, error) {
		if doc.Version != expected {
			return false, ErrVersionConflict
		}
		doc.State = append(json.RawMessage(nil), state...)
		doc.Version++
		if turn > 0 {
			doc.Turn = turn
		}
		return true, nil
	})
}

func (s *RedisStore) Subscribe(ctx context.Context, id string) (<-chan models.RoomDoc, func(), error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, nil, err
	}

	sub := s.rdb.Subscribe(ctx, updatesChannel(id))
	// Wait for the confirmation so no update published after we return is lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	subCtx, stop := context.WithCancel(ctx)
	out := make(chan models.RoomDoc, subscriberBuffer)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var doc models.RoomDoc
				if err := json.Unmarshal([]byte(msg.Payload), &doc); err != nil {
					s.log.WithError(err).Warnf("bad update on %s", msg.Channel)
					continue
				}
				select {
				case out <- doc:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()
	return out, stop, nil
}

// Close is a no-op; the client belongs to the caller.
func (s *RedisStore) Close() error { return nil }
