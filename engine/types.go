package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Player is a cell state as well as a seat: 0 empty, 1 black, 2 white.
type Player uint8

const (
	None  Player = 0
	Black Player = 1
	White Player = 2
)

// Opponent returns the other color. None maps to None.
func (p Player) Opponent() Player {
	switch p {
	case Black:
		return White
	case White:
		return Black
	}
	return None
}

// Valid reports whether p is a seat (Black or White).
func (p Player) Valid() bool { return p == Black || p == White }

func (p Player) String() string {
	switch p {
	case Black:
		return "black"
	case White:
		return "white"
	}
	return "empty"
}

// Point is a board coordinate. X is the column, Y the row.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// PerPlayer holds one value per seat. It serializes as {"1": v, "2": v}.
type PerPlayer[T any] [2]T

// Get returns the value for p. Non-seat players yield the zero value.
func (pp *PerPlayer[T]) Get(p Player) T {
	var zero T
	if !p.Valid() {
		return zero
	}
	return pp[p-1]
}

// Set stores v for p. Non-seat players are ignored.
func (pp *PerPlayer[T]) Set(p Player, v T) {
	if !p.Valid() {
		return
	}
	pp[p-1] = v
}

func (pp PerPlayer[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]T{"1": pp[0], "2": pp[1]})
}

func (pp *PerPlayer[T]) UnmarshalJSON(data []byte) error {
	var m map[string]T
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	var out PerPlayer[T]
	for k, v := range m {
		n, err := strconv.Atoi(k)
		if err != nil || !Player(n).Valid() {
			return fmt.Errorf("unknown player key %q", k)
		}
		out[n-1] = v
	}
	*pp = out
	return nil
}

// WaterDrop is a provisional stone that materializes once TurnsLeft reaches 0.
type WaterDrop struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Owner     Player `json:"player"`
	TurnsLeft int    `json:"turnsLeft"`
}

// Rules holds the tunable parameters of a game.
type Rules struct {
	Size             int // odd board edge length
	WinLength        int
	WaterDropDelay   int // turns until a water drop matures
	WaterDropCount   int // targets chosen per water-drop activation
	FlyingSandRadius int // square neighbourhood searched for a destination
}

// DefaultRules returns the standard rule set.
func DefaultRules() Rules {
	return Rules{
		Size:             15,
		WinLength:        5,
		WaterDropDelay:   4,
		WaterDropCount:   2,
		FlyingSandRadius: 3,
	}
}

// normalized fills zero fields with defaults and forces an odd size.
func (r Rules) normalized() Rules {
	d := DefaultRules()
	if r.Size <= 0 {
		r.Size = d.Size
	}
	if r.Size%2 == 0 {
		r.Size++
	}
	if r.WinLength <= 0 {
		r.WinLength = d.WinLength
	}
	if r.WaterDropDelay <= 0 {
		r.WaterDropDelay = d.WaterDropDelay
	}
	if r.WaterDropCount <= 0 {
		r.WaterDropCount = d.WaterDropCount
	}
	if r.FlyingSandRadius <= 0 {
		r.FlyingSandRadius = d.FlyingSandRadius
	}
	return r
}
