// Package server exposes the room service over a websocket and provides the
// matching client.
package server

import (
	"encoding/json"
	"errors"

	"github.com/jason-s-yu/gomoku/internal/models"
	"github.com/jason-s-yu/gomoku/internal/roomsync"
)

// Envelope is every frame on the wire. ID correlates a request with its ack.
type Envelope struct {
	T  string          `json:"t"`
	ID string          `json:"id,omitempty"`
	M  json.RawMessage `json:"m,omitempty"`
}

// Client to server.
const (
	MsgCreate    = "create"
	MsgJoin      = "join"
	MsgGet       = "get"
	MsgPublish   = "publish"
	MsgSubscribe = "subscribe"
	MsgLeave     = "leave"
)

// Server to client.
const (
	MsgAck  = "ack"
	MsgRoom = "room"
)

type CreateRequest struct {
	State json.RawMessage `json:"state,omitempty"`
}

type RoomRequest struct {
	Room string `json:"room"`
}

type PublishRequest struct {
	Room            string          `json:"room"`
	ExpectedVersion int             `json:"expectedVersion"`
	State           json.RawMessage `json:"state"`
}

// Ack answers one request.
type Ack struct {
	OK      bool            `json:"ok"`
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
	Seat    int             `json:"seat,omitempty"`
	Room    *models.RoomDoc `json:"room,omitempty"`
}

// RoomPush carries a room document to a subscriber.
type RoomPush struct {
	Doc models.RoomDoc `json:"doc"`
}

// Ack codes.
const (
	CodeBadRequest  = "bad_request"
	CodeConflict    = "conflict"
	CodeNotFound    = "not_found"
	CodeFull        = "full"
	CodeNotSeated   = "not_seated"
	CodeUnavailable = "unavailable"
)

var errNotSeated = errors.New("not seated in room")

func codeFor(err error) string {
	switch {
	case errors.Is(err, roomsync.ErrVersionConflict):
		return CodeConflict
	case errors.Is(err, roomsync.ErrRoomNotFound):
		return CodeNotFound
	case errors.Is(err, roomsync.ErrRoomFull):
		return CodeFull
	case errors.Is(err, errNotSeated):
		return CodeNotSeated
	case errors.Is(err, roomsync.ErrUnavailable):
		return CodeUnavailable
	default:
		return CodeBadRequest
	}
}

// errFor turns a failed ack back into the matching sentinel.
func errFor(a Ack) error {
	switch a.Code {
	case CodeConflict:
		return roomsync.ErrVersionConflict
	case CodeNotFound:
		return roomsync.ErrRoomNotFound
	case CodeFull:
		return roomsync.ErrRoomFull
	case CodeNotSeated:
		return errNotSeated
	case CodeUnavailable:
		return roomsync.ErrUnavailable
	default:
		return errors.New(a.Message)
	}
}
