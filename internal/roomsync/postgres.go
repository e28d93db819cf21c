package roomsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/gomoku/internal/models"
	"github.com/sirupsen/logrus"
)

const pgRoomColumns = `id, version, player1, player2, turn, state, created_at, updated_at`

// PostgresStore keeps rooms in the rooms table. Updates fan out to
// subscribers of this process only.
type PostgresStore struct {
	pool *pgxpool.Pool
	hub  *hub
}

// NewPostgresStore expects database.Migrate to have run against pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, hub: newHub(logrus.WithField("store", "postgres"))}
}

// rowScanner is satisfied by pgx.Row and *sql.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPgRoom(row rowScanner) (models.RoomDoc, error) {
	var (
		doc    models.RoomDoc
		p1, p2 *string
		state  []byte
	)
	if err := row.Scan(&doc.ID, &doc.Version, &p1, &p2, &doc.Turn, &state, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return models.RoomDoc{}, err
	}
	if p1 != nil {
		doc.Players[0] = *p1
	}
	if p2 != nil {
		doc.Players[1] = *p2
	}
	if len(state) > 0 {
		doc.State = json.RawMessage(state)
	}
	return doc, nil
}

// nullable maps the empty string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// stateArg maps an absent snapshot to SQL NULL.
func stateArg(state json.RawMessage) any {
	if len(state) == 0 || string(state) == "null" {
		return nil
	}
	return string(state)
}

func (s *PostgresStore) Create(ctx context.Context, doc models.RoomDoc) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO rooms (id, version, player1, player2, turn, state)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		doc.ID, doc.Version, nullable(doc.Players[0]), nullable(doc.Players[1]), doc.Turn, stateArg(doc.State))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoomExists
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (models.RoomDoc, error) {
	doc, err := scanPgRoom(s.pool.QueryRow(ctx, `SELECT `+pgRoomColumns+` FROM rooms WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.RoomDoc{}, ErrRoomNotFound
	}
	if err != nil {
		return models.RoomDoc{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return doc, nil
}

func (s *PostgresStore) ClaimSeat(ctx context.Context, id, identity string) (models.RoomDoc, int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.RoomDoc{}, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)

	doc, err := scanPgRoom(tx.QueryRow(ctx, `SELECT `+pgRoomColumns+` FROM rooms WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.RoomDoc{}, 0, ErrRoomNotFound
	}
	if err != nil {
		return models.RoomDoc{}, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if seat := doc.Players.SeatOf(identity); seat != 0 {
		return doc, seat, nil
	}
	seat := doc.Players.FirstFree()
	if seat == 0 {
		return models.RoomDoc{}, 0, ErrRoomFull
	}
	doc.Players[seat-1] = identity

	doc, err = scanPgRoom(tx.QueryRow(ctx,
		`UPDATE rooms SET player1 = $2, player2 = $3, updated_at = now()
		 WHERE id = $1 RETURNING `+pgRoomColumns,
		id, nullable(doc.Players[0]), nullable(doc.Players[1])))
	if err != nil {
		return models.RoomDoc{}, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.RoomDoc{}, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.hub.publish(doc)
	return doc, seat, nil
}

func (s *PostgresStore) CompareAndSwap(ctx context.Context, id string, expected int, state json.RawMessage, turn int) (models.RoomDoc, error) {
	doc, err := scanPgRoom(s.pool.QueryRow(ctx,
		`UPDATE rooms
		 SET state = $3, version = version + 1,
		     turn = CASE WHEN $4::int > 0 THEN $4::int ELSE turn END,
		     updated_at = now()
		 WHERE id = $1 AND version = $2
		 RETURNING `+pgRoomColumns,
		id, expected, stateArg(state), turn))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := s.Get(ctx, id); gerr != nil {
			return models.RoomDoc{}, gerr
		}
		return models.RoomDoc{}, ErrVersionConflict
	}
	if err != nil {
		return models.RoomDoc{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.hub.publish(doc)
	return doc, nil
}

func (s *PostgresStore) Subscribe(ctx context.Context, id string) (<-chan models.RoomDoc, func(), error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.subscribe(ctx, id)
	return ch, cancel, nil
}

// Close stops subscriptions. The pool belongs to the caller.
func (s *PostgresStore) Close() error {
	s.hub.close()
	return nil
}
