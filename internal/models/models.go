// internal/models/models.go
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Seats maps seat numbers 1 and 2 to player identities. An empty string is a
// free seat. It serializes as {"1": id|null, "2": id|null}.
type Seats [2]string

// Get returns the identity in seat (1 or 2), or "" for a free or invalid seat.
func (s Seats) Get(seat int) string {
	if seat < 1 || seat > 2 {
		return ""
	}
	return s[seat-1]
}

// SeatOf returns the seat held by identity, or 0.
func (s Seats) SeatOf(identity string) int {
	for i, id := range s {
		if id != "" && id == identity {
			return i + 1
		}
	}
	return 0
}

// FirstFree returns the lowest free seat, or 0 when both are taken.
func (s Seats) FirstFree() int {
	for i, id := range s {
		if id == "" {
			return i + 1
		}
	}
	return 0
}

func (s Seats) MarshalJSON() ([]byte, error) {
	out := make(map[string]*string, 2)
	for i := range s {
		key := fmt.Sprint(i + 1)
		if s[i] == "" {
			out[key] = nil
			continue
		}
		id := s[i]
		out[key] = &id
	}
	return json.Marshal(out)
}

func (s *Seats) UnmarshalJSON(data []byte) error {
	var m map[string]*string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	var out Seats
	for k, v := range m {
		if v == nil {
			continue
		}
		switch k {
		case "1":
			out[0] = *v
		case "2":
			out[1] = *v
		default:
			return fmt.Errorf("unknown seat %q", k)
		}
	}
	*s = out
	return nil
}

// RoomDoc is the shared, versioned room document. State holds the serialized
// game snapshot, or null before the first publish.
type RoomDoc struct {
	ID        string          `json:"id"`
	Version   int             `json:"version"` // bumped by exactly one per accepted write
	Players   Seats           `json:"players"`
	Turn      int             `json:"turn"`
	State     json.RawMessage `json:"state"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Clone returns a copy that shares no memory with d.
func (d RoomDoc) Clone() RoomDoc {
	if d.State != nil {
		d.State = append(json.RawMessage(nil), d.State...)
	}
	return d
}

// HasState reports whether a snapshot has been published.
func (d RoomDoc) HasState() bool {
	return len(d.State) > 0 && string(d.State) != "null"
}
