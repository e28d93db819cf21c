// Package engine implements skill Gomoku: a connect-five board game where
// each player also holds a set of cooldown-gated skills that move, destroy,
// repair, recolor or pre-place stones.
//
// The package is a pure, single-threaded state machine. Callers serialize
// access; every operation either fully applies or returns an error and
// leaves the state unchanged.
package engine

// GameState is the complete state of one game.
type GameState struct {
	Rules  Rules
	Board  *Board
	Skills *Registry

	CurrentPlayer Player
	TurnNumber    int
	SkipNextTurn  PerPlayer[bool]
	ForceBorder   PerPlayer[bool]
	WaterDrops    []WaterDrop
	Pending       PendingInteraction

	GameOver bool
	Winner   Player

	// Message is the transient user-visible note left by the last operation.
	Message string

	RNG uint64
}

// NewGame returns a fresh game: empty board, Black to move, turn 1.
func NewGame(seed uint64, rules Rules) GameState {
	rules = rules.normalized()
	g := GameState{
		Rules:         rules,
		Board:         NewBoard(rules.Size),
		Skills:        NewRegistry(),
		CurrentPlayer: Black,
		TurnNumber:    1,
		RNG:           seed,
	}
	if g.RNG == 0 {
		g.RNG = 1 // xorshift can't start at 0
	}
	return g
}

// Restart returns the game to its initial state, keeping rules and RNG stream.
// Any armed interaction is discarded.
func (g *GameState) Restart() {
	rng := g.RNG
	*g = NewGame(rng, g.Rules)
}

// ---------------------------------------------------------------------------
// xorshift64 RNG, inline
// ---------------------------------------------------------------------------

func (g *GameState) nextRand() uint64 {
	x := g.RNG
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	g.RNG = x
	return x
}

// randN returns a random number in [0, n).
func (g *GameState) randN(n int) int {
	if n <= 1 {
		return 0
	}
	return int(g.nextRand() % uint64(n))
}

// ---------------------------------------------------------------------------
// Query methods
// ---------------------------------------------------------------------------

// IsTerminal returns true when the game is over.
func (g *GameState) IsTerminal() bool { return g.GameOver }

// Clone returns a deep copy suitable for rollback.
func (g *GameState) Clone() GameState {
	c := *g
	c.Board = g.Board.Clone()
	c.Skills = g.Skills.Clone()
	c.WaterDrops = append([]WaterDrop(nil), g.WaterDrops...)
	return c
}

// WaterDropAt returns the index of the drop sitting on (x, y), or -1.
func (g *GameState) WaterDropAt(x, y int) int {
	for i, d := range g.WaterDrops {
		if d.X == x && d.Y == y {
			return i
		}
	}
	return -1
}

// ---------------------------------------------------------------------------
// Skill capability adapter
// ---------------------------------------------------------------------------

// skillCtx exposes the capability surface of g to one skill activation.
type skillCtx struct{ g *GameState }

func (c skillCtx) Player() Player { return c.g.CurrentPlayer }
func (c skillCtx) Board() *Board { return c.g.Board }
func (c skillCtx) Arm(p PendingInteraction) { c.g.Pending = p }
func (c skillCtx) SetSkipNextTurn(p Player) { c.g.SkipNextTurn.Set(p, true) }
func (c skillCtx) SetForceBorder(p Player) { c.g.ForceBorder.Set(p, true) }
func (c skillCtx) RandN(n int) int { return c.g.randN(n) }
func (c skillCtx) Rules() Rules { return c.g.Rules }
func (c skillCtx) Notify(msg string) { c.g.Message = msg }
