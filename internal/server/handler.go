package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/gomoku/internal/auth"
	"github.com/jason-s-yu/gomoku/internal/roomsync"
	"github.com/sirupsen/logrus"
)

const (
	pingInterval = 15 * time.Second
	sendBuffer   = 32
)

// Handler serves the HTTP and websocket endpoints.
type Handler struct {
	rooms        *roomsync.Service
	issuer       *auth.Issuer
	allowOrigins map[string]bool
	log          *logrus.Entry
}

// NewHandler builds a Handler. An empty allow list accepts any origin.
func NewHandler(rooms *roomsync.Service, issuer *auth.Issuer, allow []string) *Handler {
	m := map[string]bool{}
	for _, a := range allow {
		if a != "" {
			m[a] = true
		}
	}
	return &Handler{
		rooms:        rooms,
		issuer:       issuer,
		allowOrigins: m,
		log:          logrus.WithField("component", "ws"),
	}
}

// Routes returns the mux: GET /health, POST /auth/anonymous, GET /ws.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /auth/anonymous", h.handleAnonymous)
	mux.HandleFunc("GET /ws", h.ServeWS)
	return h.cors(mux)
}

func (h *Handler) originAllowed(origin string) bool {
	return origin == "" || len(h.allowOrigins) == 0 || h.allowOrigins[origin]
}

func (h *Handler) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && h.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AnonymousResponse is the body of POST /auth/anonymous.
type AnonymousResponse struct {
	Identity string `json:"identity"`
	Token    string `json:"token"`
}

func (h *Handler) handleAnonymous(w http.ResponseWriter, r *http.Request) {
	identity, token, err := h.issuer.IssueAnonymous()
	if err != nil {
		h.log.WithError(err).Error("issue anonymous token")
		http.Error(w, "could not issue token", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(AnonymousResponse{Identity: identity, Token: token}); err != nil {
		h.log.WithError(err).Warn("write token response")
	}
}

// ServeWS upgrades an authenticated request and serves room requests until
// the socket closes.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	if !h.originAllowed(r.Header.Get("Origin")) {
		http.Error(w, "forbidden origin", http.StatusForbidden)
		return
	}
	identity, err := h.issuer.Verify(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.log.WithError(err).Warn("websocket accept failed")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &wsConn{
		h:        h,
		ws:       ws,
		identity: identity,
		send:     make(chan Envelope, sendBuffer),
		subs:     make(map[string]func()),
		log:      h.log.WithField("identity", identity),
	}
	c.log.Info("client connected")

	go c.writeLoop(ctx, cancel)
	c.readLoop(ctx)

	c.closeSubs()
	ws.Close(websocket.StatusNormalClosure, "bye")
	c.log.Info("client disconnected")
}

// wsConn is one authenticated websocket.
type wsConn struct {
	h        *Handler
	ws       *websocket.Conn
	identity string
	send     chan Envelope

	mu   sync.Mutex
	subs map[string]func() // room id -> cancel

	log *logrus.Entry
}

func (c *wsConn) writeLoop(ctx context.Context, cancel context.CancelFunc) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-c.send:
			if err := wsjson.Write(ctx, c.ws, env); err != nil {
				c.log.WithError(err).Debug("write failed")
				return
			}
		case <-ping.C:
			if err := c.ws.Ping(ctx); err != nil {
				c.log.WithError(err).Debug("ping failed")
				return
			}
		}
	}
}

func (c *wsConn) readLoop(ctx context.Context) {
	for {
		var env Envelope
		if err := wsjson.Read(ctx, c.ws, &env); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				c.log.WithError(err).Debug("read failed")
			}
			return
		}
		ack := c.dispatch(ctx, env)
		data, err := json.Marshal(ack)
		if err != nil {
			c.log.WithError(err).Error("encode ack")
			continue
		}
		if !c.enqueue(ctx, Envelope{T: MsgAck, ID: env.ID, M: data}) {
			return
		}
	}
}

// enqueue hands env to the writer, giving up when the connection ends.
func (c *wsConn) enqueue(ctx context.Context, env Envelope) bool {
	select {
	case c.send <- env:
		return true
	case <-ctx.Done():
		return false
	}
}

func failed(err error) Ack {
	return Ack{OK: false, Message: err.Error(), Code: codeFor(err)}
}

func (c *wsConn) dispatch(ctx context.Context, env Envelope) Ack {
	switch env.T {
	case MsgCreate:
		var req CreateRequest
		if err := decode(env.M, &req); err != nil {
			return failed(err)
		}
		doc, err := c.h.rooms.CreateRoom(ctx, c.identity, req.State)
		if err != nil {
			return failed(err)
		}
		return Ack{OK: true, Seat: 1, Room: &doc}

	case MsgJoin:
		var req RoomRequest
		if err := decodeRoom(env.M, &req); err != nil {
			return failed(err)
		}
		doc, seat, err := c.h.rooms.JoinRoom(ctx, req.Room, c.identity)
		if err != nil {
			return failed(err)
		}
		return Ack{OK: true, Seat: seat, Room: &doc}

	case MsgGet:
		var req RoomRequest
		if err := decodeRoom(env.M, &req); err != nil {
			return failed(err)
		}
		doc, err := c.h.rooms.Get(ctx, req.Room)
		if err != nil {
			return failed(err)
		}
		return Ack{OK: true, Seat: doc.Players.SeatOf(c.identity), Room: &doc}

	case MsgPublish:
		var req PublishRequest
		if err := decode(env.M, &req); err != nil {
			return failed(err)
		}
		current, err := c.h.rooms.Get(ctx, req.Room)
		if err != nil {
			return failed(err)
		}
		if current.Players.SeatOf(c.identity) == 0 {
			return failed(errNotSeated)
		}
		doc, err := c.h.rooms.Publish(ctx, req.Room, req.ExpectedVersion, req.State)
		if err != nil {
			return failed(err)
		}
		return Ack{OK: true, Room: &doc}

	case MsgSubscribe:
		var req RoomRequest
		if err := decodeRoom(env.M, &req); err != nil {
			return failed(err)
		}
		if err := c.subscribe(ctx, req.Room); err != nil {
			return failed(err)
		}
		return Ack{OK: true}

	case MsgLeave:
		var req RoomRequest
		if err := decodeRoom(env.M, &req); err != nil {
			return failed(err)
		}
		c.unsubscribe(req.Room)
		c.log.Infof("left room %s", req.Room)
		return Ack{OK: true, Message: "left room " + req.Room}

	default:
		return Ack{OK: false, Message: fmt.Sprintf("unknown message %q", env.T), Code: CodeBadRequest}
	}
}

// subscribe forwards room pushes to this socket until unsubscribed or closed.
func (c *wsConn) subscribe(ctx context.Context, roomID string) error {
	subCtx, stop := context.WithCancel(ctx)
	ch, cancel, err := c.h.rooms.Subscribe(subCtx, roomID)
	if err != nil {
		stop()
		return err
	}

	c.mu.Lock()
	if prev, ok := c.subs[roomID]; ok {
		prev()
	}
	c.subs[roomID] = func() {
		cancel()
		stop()
	}
	c.mu.Unlock()

	go func() {
		for doc := range ch {
			data, err := json.Marshal(RoomPush{Doc: doc})
			if err != nil {
				continue
			}
			if !c.enqueue(subCtx, Envelope{T: MsgRoom, M: data}) {
				return
			}
		}
	}()
	return nil
}

func (c *wsConn) unsubscribe(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.subs[roomID]; ok {
		cancel()
		delete(c.subs, roomID)
	}
}

func (c *wsConn) closeSubs() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, cancel := range c.subs {
		cancel()
		delete(c.subs, id)
	}
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("missing payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("bad payload: %w", err)
	}
	return nil
}

func decodeRoom(raw json.RawMessage, req *RoomRequest) error {
	if err := decode(raw, req); err != nil {
		return err
	}
	if req.Room == "" {
		return errors.New("room required")
	}
	return nil
}
