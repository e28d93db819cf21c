package engine

import (
	"encoding/json"
	"fmt"
)

// Snapshot is the serialized game state exchanged with the room store and
// the presentation layer. Pending interactions are not part of it: loading
// a snapshot always leaves the engine idle.
type Snapshot struct {
	Size            int                  `json:"size"`
	Grid            GridRows             `json:"grid"`
	Destroyed       []Point              `json:"destroyed"`
	CurrentPlayer   Player               `json:"currentPlayer"`
	Turn            int                  `json:"turn"`
	SkipNextTurn    PerPlayer[bool]      `json:"skipNextTurn"`
	ForceBorder     PerPlayer[bool]      `json:"forceBorder"`
	WaterDrops      []WaterDrop          `json:"waterDrops"`
	SkillsCooldowns map[SkillID]Cooldown `json:"skillsCooldowns,omitempty"`
	GameOver        bool                 `json:"gameOver"`
	Winner          Player               `json:"winner,omitempty"`
}

// GridRows is a row-major grid. It encodes as one string per row of
// '0'/'1'/'2' characters and also decodes the legacy array-of-int rows.
type GridRows [][]Player

func (g GridRows) MarshalJSON() ([]byte, error) {
	rows := make([]string, len(g))
	for y, row := range g {
		buf := make([]byte, len(row))
		for x, v := range row {
			buf[x] = byte('0' + v)
		}
		rows[y] = string(buf)
	}
	return json.Marshal(rows)
}

func (g *GridRows) UnmarshalJSON(data []byte) error {
	var rows []string
	if err := json.Unmarshal(data, &rows); err == nil {
		out := make(GridRows, len(rows))
		for y, line := range rows {
			out[y] = make([]Player, len(line))
			for x := 0; x < len(line); x++ {
				v := Player(line[x] - '0')
				if line[x] < '0' || v > White {
					return fmt.Errorf("%w: bad cell %q at (%d,%d)", ErrMalformedSnapshot, line[x], x, y)
				}
				out[y][x] = v
			}
		}
		*g = out
		return nil
	}

	var legacy [][]int
	if err := json.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("%w: unrecognized grid shape", ErrMalformedSnapshot)
	}
	out := make(GridRows, len(legacy))
	for y, row := range legacy {
		out[y] = make([]Player, len(row))
		for x, v := range row {
			if v < 0 || v > int(White) {
				return fmt.Errorf("%w: bad cell %d at (%d,%d)", ErrMalformedSnapshot, v, x, y)
			}
			out[y][x] = Player(v)
		}
	}
	*g = out
	return nil
}

// ParseSnapshot decodes and validates a snapshot document.
func ParseSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// Validate checks the grid shape. A zero Size is inferred from the grid.
func (s *Snapshot) Validate() error {
	if s.Size == 0 {
		s.Size = len(s.Grid)
	}
	if s.Size <= 0 || len(s.Grid) != s.Size {
		return fmt.Errorf("%w: grid has %d rows, size %d", ErrMalformedSnapshot, len(s.Grid), s.Size)
	}
	for y, row := range s.Grid {
		if len(row) != s.Size {
			return fmt.Errorf("%w: row %d has %d cells, size %d", ErrMalformedSnapshot, y, len(row), s.Size)
		}
	}
	return nil
}

// Snapshot captures the current state.
func (g *GameState) Snapshot() Snapshot {
	grid := make(GridRows, g.Board.Size)
	for y := range grid {
		grid[y] = append([]Player(nil), g.Board.Grid[y]...)
	}
	drops := append([]WaterDrop{}, g.WaterDrops...)
	s := Snapshot{
		Size:            g.Board.Size,
		Grid:            grid,
		Destroyed:       g.Board.Destroyed(),
		CurrentPlayer:   g.CurrentPlayer,
		Turn:            g.TurnNumber,
		SkipNextTurn:    g.SkipNextTurn,
		ForceBorder:     g.ForceBorder,
		WaterDrops:      drops,
		SkillsCooldowns: g.Skills.Cooldowns(),
		GameOver:        g.GameOver,
	}
	if g.GameOver {
		s.Winner = g.Winner
	}
	return s
}

// LoadSnapshot replaces the game state wholesale with s. A malformed grid
// returns ErrMalformedSnapshot and leaves g untouched. Out-of-range
// destroyed cells and drops are dropped; missing counters take defaults and
// negative drop timers read as 0.
func (g *GameState) LoadSnapshot(s Snapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}

	board := NewBoard(s.Size)
	for y, row := range s.Grid {
		copy(board.Grid[y], row)
	}
	for _, p := range s.Destroyed {
		if board.InBounds(p.X, p.Y) {
			board.Destroy(p.X, p.Y)
		}
	}
	var drops []WaterDrop
	for _, d := range s.WaterDrops {
		if board.InBounds(d.X, d.Y) && d.Owner.Valid() {
			d.TurnsLeft = max(d.TurnsLeft, 0)
			drops = append(drops, d)
		}
	}

	g.Rules.Size = s.Size
	g.Board = board
	if g.Skills == nil {
		g.Skills = NewRegistry()
	}
	if s.SkillsCooldowns != nil {
		g.Skills.SetCooldowns(s.SkillsCooldowns)
	}
	g.CurrentPlayer = s.CurrentPlayer
	if !g.CurrentPlayer.Valid() {
		g.CurrentPlayer = Black
	}
	g.TurnNumber = s.Turn
	if g.TurnNumber <= 0 {
		g.TurnNumber = 1
	}
	g.SkipNextTurn = s.SkipNextTurn
	g.ForceBorder = s.ForceBorder
	g.WaterDrops = drops
	g.Pending = PendingInteraction{}
	g.GameOver = s.GameOver
	g.Winner = None
	if s.GameOver {
		g.Winner = s.Winner
	}
	g.Message = ""
	return nil
}
