package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/gomoku/internal/models"
	"github.com/jason-s-yu/gomoku/internal/roomsync"
	"github.com/sirupsen/logrus"
)

var errClosed = errors.New("connection closed")

// RemoteClient talks to a Handler over one websocket. It implements
// roomsync.Remote for the identity its token was issued to.
type RemoteClient struct {
	Identity string

	ws  *websocket.Conn
	ctx context.Context
	end context.CancelFunc

	mu      sync.Mutex
	pending map[string]chan Ack
	subs    map[string]chan models.RoomDoc
	err     error

	log *logrus.Entry
}

var _ roomsync.Remote = (*RemoteClient)(nil)

// Dial obtains an anonymous identity from baseURL and opens the websocket.
func Dial(ctx context.Context, baseURL string) (*RemoteClient, error) {
	base := strings.TrimRight(baseURL, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/auth/anonymous", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", roomsync.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: auth returned %s", roomsync.ErrUnavailable, resp.Status)
	}
	var creds AnonymousResponse
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}
	return DialToken(ctx, base, creds.Identity, creds.Token)
}

// DialToken opens the websocket with an existing token.
func DialToken(ctx context.Context, baseURL, identity, token string) (*RemoteClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/ws")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	ws, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", roomsync.ErrUnavailable, err)
	}
	connCtx, end := context.WithCancel(context.Background())
	c := &RemoteClient{
		Identity: identity,
		ws:       ws,
		ctx:      connCtx,
		end:      end,
		pending:  make(map[string]chan Ack),
		subs:     make(map[string]chan models.RoomDoc),
		log:      logrus.WithField("component", "ws-client"),
	}
	go c.readLoop()
	return c, nil
}

// Close ends the connection and every subscription.
func (c *RemoteClient) Close() error {
	err := c.ws.Close(websocket.StatusNormalClosure, "bye")
	c.shutdown(errClosed)
	return err
}

// Done is closed when the connection ends.
func (c *RemoteClient) Done() <-chan struct{} { return c.ctx.Done() }

func (c *RemoteClient) readLoop() {
	for {
		var env Envelope
		if err := wsjson.Read(c.ctx, c.ws, &env); err != nil {
			c.shutdown(err)
			return
		}
		switch env.T {
		case MsgAck:
			var ack Ack
			if err := json.Unmarshal(env.M, &ack); err != nil {
				c.log.WithError(err).Warn("bad ack")
				continue
			}
			c.mu.Lock()
			ch, ok := c.pending[env.ID]
			delete(c.pending, env.ID)
			c.mu.Unlock()
			if ok {
				ch <- ack
			}
		case MsgRoom:
			var push RoomPush
			if err := json.Unmarshal(env.M, &push); err != nil {
				c.log.WithError(err).Warn("bad room push")
				continue
			}
			c.deliver(push.Doc)
		default:
			c.log.Debugf("ignoring %q frame", env.T)
		}
	}
}

// deliver never blocks the read loop; a full subscriber loses its oldest doc.
func (c *RemoteClient) deliver(doc models.RoomDoc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.subs[doc.ID]
	if !ok {
		return
	}
	select {
	case ch <- doc:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- doc:
	default:
	}
}

func (c *RemoteClient) shutdown(cause error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = cause
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.mu.Unlock()
	c.end()
}

// request sends one message and waits for its ack. Transport failures are
// reported as roomsync.ErrUnavailable.
func (c *RemoteClient) request(ctx context.Context, t string, payload any) (Ack, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Ack{}, err
	}
	id := uuid.NewString()
	ch := make(chan Ack, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return Ack{}, fmt.Errorf("%w: %v", roomsync.ErrUnavailable, err)
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := wsjson.Write(ctx, c.ws, Envelope{T: t, ID: id, M: data}); err != nil {
		c.forget(id)
		return Ack{}, fmt.Errorf("%w: %v", roomsync.ErrUnavailable, err)
	}

	select {
	case ack, ok := <-ch:
		if !ok {
			return Ack{}, fmt.Errorf("%w: %v", roomsync.ErrUnavailable, errClosed)
		}
		if !ack.OK {
			return ack, errFor(ack)
		}
		return ack, nil
	case <-ctx.Done():
		c.forget(id)
		return Ack{}, ctx.Err()
	}
}

func (c *RemoteClient) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func roomOf(a Ack) (models.RoomDoc, error) {
	if a.Room == nil {
		return models.RoomDoc{}, errors.New("ack without room")
	}
	return *a.Room, nil
}

func (c *RemoteClient) CreateRoom(ctx context.Context, state json.RawMessage) (models.RoomDoc, error) {
	ack, err := c.request(ctx, MsgCreate, CreateRequest{State: state})
	if err != nil {
		return models.RoomDoc{}, err
	}
	return roomOf(ack)
}

func (c *RemoteClient) JoinRoom(ctx context.Context, roomID string) (models.RoomDoc, int, error) {
	ack, err := c.request(ctx, MsgJoin, RoomRequest{Room: roomID})
	if err != nil {
		return models.RoomDoc{}, 0, err
	}
	doc, err := roomOf(ack)
	return doc, ack.Seat, err
}

func (c *RemoteClient) Get(ctx context.Context, roomID string) (models.RoomDoc, error) {
	ack, err := c.request(ctx, MsgGet, RoomRequest{Room: roomID})
	if err != nil {
		return models.RoomDoc{}, err
	}
	return roomOf(ack)
}

func (c *RemoteClient) Publish(ctx context.Context, roomID string, expected int, state json.RawMessage) (models.RoomDoc, error) {
	ack, err := c.request(ctx, MsgPublish, PublishRequest{Room: roomID, ExpectedVersion: expected, State: state})
	if err != nil {
		return models.RoomDoc{}, err
	}
	return roomOf(ack)
}

// Subscribe streams pushes for roomID. One subscription per room; a second
// call replaces the first. Cancelling sends leave.
func (c *RemoteClient) Subscribe(ctx context.Context, roomID string) (<-chan models.RoomDoc, func(), error) {
	ch := make(chan models.RoomDoc, 16)
	c.mu.Lock()
	if prev, ok := c.subs[roomID]; ok {
		close(prev)
	}
	c.subs[roomID] = ch
	c.mu.Unlock()

	if _, err := c.request(ctx, MsgSubscribe, RoomRequest{Room: roomID}); err != nil {
		c.drop(roomID, ch)
		return nil, nil, err
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			if !c.drop(roomID, ch) {
				return
			}
			go func() {
				lctx, lcancel := context.WithTimeout(c.ctx, 2*time.Second)
				defer lcancel()
				if _, err := c.request(lctx, MsgLeave, RoomRequest{Room: roomID}); err != nil {
					c.log.WithError(err).Debugf("leave %s", roomID)
				}
			}()
		})
	}
	stop := context.AfterFunc(ctx, cancel)
	return ch, func() {
		stop()
		cancel()
	}, nil
}

// drop removes ch if it is still the subscription for roomID.
func (c *RemoteClient) drop(roomID string, ch chan models.RoomDoc) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.subs[roomID]; ok && cur == ch {
		close(ch)
		delete(c.subs, roomID)
		return true
	}
	return false
}
