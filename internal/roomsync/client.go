package roomsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jason-s-yu/gomoku/engine"
	"github.com/jason-s-yu/gomoku/internal/game"
	"github.com/jason-s-yu/gomoku/internal/models"
	"github.com/sirupsen/logrus"
)

// Remote is the room service as seen by one player. The identity is bound
// when the Remote is made.
type Remote interface {
	CreateRoom(ctx context.Context, state json.RawMessage) (models.RoomDoc, error)
	JoinRoom(ctx context.Context, roomID string) (models.RoomDoc, int, error)
	Publish(ctx context.Context, roomID string, expected int, state json.RawMessage) (models.RoomDoc, error)
	Get(ctx context.Context, roomID string) (models.RoomDoc, error)
	Subscribe(ctx context.Context, roomID string) (<-chan models.RoomDoc, func(), error)
}

// As returns a Remote that acts on s as identity.
func (s *Service) As(identity string) Remote {
	return &localRemote{svc: s, identity: identity}
}

type localRemote struct {
	svc      *Service
	identity string
}

func (r *localRemote) CreateRoom(ctx context.Context, state json.RawMessage) (models.RoomDoc, error) {
	return r.svc.CreateRoom(ctx, r.identity, state)
}

func (r *localRemote) JoinRoom(ctx context.Context, roomID string) (models.RoomDoc, int, error) {
	return r.svc.JoinRoom(ctx, roomID, r.identity)
}

func (r *localRemote) Publish(ctx context.Context, roomID string, expected int, state json.RawMessage) (models.RoomDoc, error) {
	return r.svc.Publish(ctx, roomID, expected, state)
}

func (r *localRemote) Get(ctx context.Context, roomID string) (models.RoomDoc, error) {
	return r.svc.Get(ctx, roomID)
}

func (r *localRemote) Subscribe(ctx context.Context, roomID string) (<-chan models.RoomDoc, func(), error) {
	return r.svc.Subscribe(ctx, roomID)
}

const (
	DefaultResubscribeDelay = 300 * time.Millisecond
	publishTimeout          = 5 * time.Second
)

// Client mirrors a room into a local Session. Only the seat that completed a
// turn publishes it; every newer document pushed by the room is loaded.
//
// Lock order: applyMu, Session.Mu, mu.
type Client struct {
	Session          *game.Session
	ResubscribeDelay time.Duration
	// StatusFn receives human-readable sync status. May be called with
	// Session.Mu held.
	StatusFn func(msg string)

	remote  Remote
	applyMu sync.Mutex

	mu        sync.Mutex
	roomID    string
	seat      int
	version   int
	gen       uint64
	cancelSub func()
	resub     *time.Timer

	log *logrus.Entry
}

// NewClient binds session to remote. It takes over session.OnStateChanged.
func NewClient(remote Remote, session *game.Session) *Client {
	c := &Client{
		Session:          session,
		ResubscribeDelay: DefaultResubscribeDelay,
		remote:           remote,
		log:              logrus.WithField("component", "roomsync-client"),
	}
	session.Mu.Lock()
	session.OnStateChanged = c.onStateChanged
	session.Mu.Unlock()
	return c
}

// Create opens a room seeded with the current local state and takes seat 1.
func (c *Client) Create(ctx context.Context) (models.RoomDoc, error) {
	data, err := json.Marshal(c.Session.Snapshot())
	if err != nil {
		return models.RoomDoc{}, fmt.Errorf("encode state: %w", err)
	}
	doc, err := c.remote.CreateRoom(ctx, data)
	if err != nil {
		c.status(fmt.Sprintf("could not create room: %v", err))
		return models.RoomDoc{}, err
	}
	c.attach(doc, 1)
	c.status(fmt.Sprintf("created room %s, you are player 1", doc.ID))
	return doc, nil
}

// Join takes a seat in roomID and loads the room's state if it has one.
func (c *Client) Join(ctx context.Context, roomID string) (models.RoomDoc, int, error) {
	doc, seat, err := c.remote.JoinRoom(ctx, roomID)
	if err != nil {
		c.status(fmt.Sprintf("could not join room %s: %v", roomID, err))
		return models.RoomDoc{}, 0, err
	}
	gen := c.attach(doc, seat)
	c.load(gen, doc, true)
	c.status(fmt.Sprintf("joined room %s as player %d", doc.ID, seat))
	return doc, seat, nil
}

// Leave stops following the room and clears the local seat. The seat stays
// claimed in the room document.
func (c *Client) Leave() {
	c.mu.Lock()
	roomID := c.roomID
	c.detachLocked()
	c.roomID, c.seat, c.version = "", 0, 0
	c.mu.Unlock()

	if roomID != "" {
		c.status("left room " + roomID)
	}
}

func (c *Client) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *Client) Seat() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seat
}

// Version returns the last room version this client observed.
func (c *Client) Version() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// CanAct reports whether local input may be applied: always offline,
// otherwise only on this seat's turn.
func (c *Client) CanAct() bool {
	seat := c.Seat()
	if seat == 0 {
		return true
	}
	return c.Session.CurrentPlayer() == engine.Player(seat)
}

// attach switches the client to doc's room and starts following it.
func (c *Client) attach(doc models.RoomDoc, seat int) uint64 {
	c.mu.Lock()
	c.detachLocked()
	c.gen++
	gen := c.gen
	c.roomID, c.seat, c.version = doc.ID, seat, doc.Version
	c.resub = time.AfterFunc(c.ResubscribeDelay, func() { c.resubscribe(gen) })
	c.mu.Unlock()

	c.follow(gen, doc.ID)
	return gen
}

// Assumes mu is held by caller.
func (c *Client) detachLocked() {
	c.gen++
	if c.cancelSub != nil {
		c.cancelSub()
		c.cancelSub = nil
	}
	if c.resub != nil {
		c.resub.Stop()
		c.resub = nil
	}
}

// follow subscribes to roomID and consumes pushes until the subscription ends
// or gen is superseded.
func (c *Client) follow(gen uint64, roomID string) {
	ctx, cancel := context.WithCancel(context.Background())
	ch, unsub, err := c.remote.Subscribe(ctx, roomID)
	if err != nil {
		cancel()
		c.log.WithError(err).Warnf("subscribe to room %s failed", roomID)
		c.status(fmt.Sprintf("room updates unavailable: %v", err))
		return
	}
	stop := func() {
		unsub()
		cancel()
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		stop()
		return
	}
	if c.cancelSub != nil {
		c.cancelSub()
	}
	c.cancelSub = stop
	c.mu.Unlock()

	go func() {
		for doc := range ch {
			c.load(gen, doc, false)
		}
	}()
}

// resubscribe rebinds the subscription and re-reads the room once.
func (c *Client) resubscribe(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	roomID := c.roomID
	c.resub = nil
	c.mu.Unlock()

	c.log.Debugf("resubscribing to room %s", roomID)
	c.follow(gen, roomID)

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	doc, err := c.remote.Get(ctx, roomID)
	if err != nil {
		c.log.WithError(err).Debugf("re-read of room %s failed", roomID)
		return
	}
	c.load(gen, doc, false)
}

// load applies doc if it is newer than anything seen so far. initial also
// accepts the version the client attached at.
// The version is checked again under Session.Mu right before the state is
// replaced; a local publish can advance it while the load waits for the lock.
func (c *Client) load(gen uint64, doc models.RoomDoc, initial bool) {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	if !c.wants(gen, doc, initial) {
		return
	}
	if !doc.HasState() {
		c.advance(gen, doc.Version)
		return
	}
	current := func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen || doc.Version < c.version {
			return false
		}
		c.version = doc.Version
		return true
	}
	if err := c.Session.LoadRemoteStateIf(doc.State, current); err != nil {
		c.advance(gen, doc.Version)
		c.status("ignored a malformed room state")
	}
}

func (c *Client) wants(gen uint64, doc models.RoomDoc, initial bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen && doc.ID == c.roomID &&
		(doc.Version > c.version || initial && doc.Version == c.version)
}

// advance records a room version whose state was not loaded.
func (c *Client) advance(gen uint64, version int) {
	c.mu.Lock()
	if gen == c.gen && version > c.version {
		c.version = version
	}
	c.mu.Unlock()
}

// onStateChanged publishes a change this seat made.
// Called with Session.Mu held.
func (c *Client) onStateChanged(snap engine.Snapshot, actor engine.Player) {
	c.mu.Lock()
	roomID, seat, expected := c.roomID, c.seat, c.version
	c.mu.Unlock()
	if roomID == "" || engine.Player(seat) != actor {
		return
	}

	data, err := json.Marshal(snap)
	if err != nil {
		c.log.WithError(err).Error("encode snapshot")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	doc, err := c.remote.Publish(ctx, roomID, expected, data)
	switch {
	case errors.Is(err, ErrVersionConflict):
		c.log.Debugf("publish to room %s at v%d lost the race", roomID, expected)
		return
	case err != nil:
		c.log.WithError(err).Warnf("publish to room %s failed", roomID)
		c.status(fmt.Sprintf("sync unavailable, playing locally: %v", err))
		return
	}

	c.mu.Lock()
	if doc.ID == c.roomID && doc.Version > c.version {
		c.version = doc.Version
	}
	c.mu.Unlock()
}

func (c *Client) status(msg string) {
	if c.StatusFn != nil {
		c.StatusFn(msg)
		return
	}
	c.log.Info(msg)
}
