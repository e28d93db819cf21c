package roomsync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/gomoku/internal/models"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	version    INTEGER NOT NULL DEFAULT 0,
	player1    TEXT,
	player2    TEXT,
	turn       INTEGER NOT NULL DEFAULT 1,
	state      TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
)`

const sqliteRoomColumns = `id, version, player1, player2, turn, state, created_at, updated_at`

// SQLiteStore keeps rooms in a single-file database for single-host setups.
type SQLiteStore struct {
	db  *sql.DB
	hub *hub
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db, hub: newHub(logrus.WithField("store", "sqlite")), now: time.Now}, nil
}

func scanSQLiteRoom(row rowScanner) (models.RoomDoc, error) {
	var (
		doc              models.RoomDoc
		p1, p2, state    sql.NullString
		created, updated int64
	)
	if err := row.Scan(&doc.ID, &doc.Version, &p1, &p2, &doc.Turn, &state, &created, &updated); err != nil {
		return models.RoomDoc{}, err
	}
	doc.Players[0] = p1.String
	doc.Players[1] = p2.String
	if state.Valid && state.String != "" {
		doc.State = json.RawMessage(state.String)
	}
	doc.CreatedAt = time.UnixMilli(created).UTC()
	doc.UpdatedAt = time.UnixMilli(updated).UTC()
	return doc, nil
}

func (s *SQLiteStore) Create(ctx context.Context, doc models.RoomDoc) error {
	now := s.now().UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, version, player1, player2, turn, state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		doc.ID, doc.Version, nullable(doc.Players[0]), nullable(doc.Players[1]), doc.Turn, stateArg(doc.State), now, now)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if n == 0 {
		return ErrRoomExists
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (models.RoomDoc, error) {
	doc, err := scanSQLiteRoom(s.db.QueryRowContext(ctx, `SELECT `+sqliteRoomColumns+` FROM rooms WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.RoomDoc{}, ErrRoomNotFound
	}
	if err != nil {
		return models.RoomDoc{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return doc, nil
}

func (s *SQLiteStore) ClaimSeat(ctx context.Context, id, identity string) (models.RoomDoc, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.RoomDoc{}, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer tx.Rollback()

	doc, err := scanSQLiteRoom(tx.QueryRowContext(ctx, `SELECT `+sqliteRoomColumns+` FROM rooms WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
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

	doc, err = scanSQLiteRoom(tx.QueryRowContext(ctx,
		`UPDATE rooms SET player1 = ?, player2 = ?, updated_at = ?
		 WHERE id = ? RETURNING `+sqliteRoomColumns,
		nullable(doc.Players[0]), nullable(doc.Players[1]), s.now().UnixMilli(), id))
	if err != nil {
		return models.RoomDoc{}, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return models.RoomDoc{}, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.hub.publish(doc)
	return doc, seat, nil
}

func (s *SQLiteStore) CompareAndSwap(ctx context.Context, id string, expected int, state json.RawMessage, turn int) (models.RoomDoc, error) {
	doc, err := scanSQLiteRoom(s.db.QueryRowContext(ctx,
		`UPDATE rooms
		 SET state = ?, version = version + 1,
		     turn = CASE WHEN ? > 0 THEN ? ELSE turn END,
		     updated_at = ?
		 WHERE id = ? AND version = ?
		 RETURNING `+sqliteRoomColumns,
		stateArg(state), turn, turn, s.now().UnixMilli(), id, expected))
	if errors.Is(err, sql.ErrNoRows) {
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

func (s *SQLiteStore) Subscribe(ctx context.Context, id string) (<-chan models.RoomDoc, func(), error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.subscribe(ctx, id)
	return ch, cancel, nil
}

func (s *SQLiteStore) Close() error {
	s.hub.close()
	return s.db.Close()
}
