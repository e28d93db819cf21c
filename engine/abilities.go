package engine

import (
	"encoding/json"
	"fmt"
)

// SkillID names a skill on the wire and in cooldown maps.
type SkillID string

const (
	SkillFlyingSand      SkillID = "flying-sand"
	SkillMountainPower   SkillID = "mountain-power"
	SkillStillWater      SkillID = "still-water"
	SkillPolarityReverse SkillID = "polarity-reverse"
	SkillTigerTrap       SkillID = "tiger-trap"
	SkillWaterDrop       SkillID = "water-drop"
	SkillResurrection    SkillID = "resurrection"
	SkillCleanSweep      SkillID = "clean-sweep"
)

// SkillContext is the capability surface handed to a skill effect for one
// activation. Effects never touch the GameState directly.
type SkillContext interface {
	// Player is the acting player.
	Player() Player
	Board() *Board
	// Arm installs a follow-up interaction.
	Arm(p PendingInteraction)
	SetSkipNextTurn(p Player)
	SetForceBorder(p Player)
	// RandN returns a number in [0, n).
	RandN(n int) int
	Rules() Rules
	// Notify sets the transient user-visible message.
	Notify(msg string)
}

// Skill is an immutable skill definition.
type Skill struct {
	ID          SkillID
	Name        string
	Description string
	Cooldown    int // owning player's completed turns before reuse
	effect      func(ctx SkillContext) error
}

// catalog lists the skills in display order.
var catalog = []Skill{
	{
		ID:          SkillFlyingSand,
		Name:        "Flying Sand",
		Description: "Move a random opposing stone to a nearby empty cell.",
		Cooldown:    4,
		effect:      flyingSand,
	},
	{
		ID:          SkillMountainPower,
		Name:        "Mountain Power",
		Description: "Permanently destroy one cell, including its stone.",
		Cooldown:    6,
		effect: func(ctx SkillContext) error {
			ctx.Arm(PendingInteraction{Type: PendingDestroyTarget, Player: ctx.Player()})
			return nil
		},
	},
	{
		ID:          SkillStillWater,
		Name:        "Still Water",
		Description: "Skip the opponent's next turn.",
		Cooldown:    6,
		effect: func(ctx SkillContext) error {
			ctx.SetSkipNextTurn(ctx.Player().Opponent())
			return nil
		},
	},
	{
		ID:          SkillPolarityReverse,
		Name:        "Polarity Reverse",
		Description: "Swap the color of every stone on the board.",
		Cooldown:    7,
		effect:      polarityReverse,
	},
	{
		ID:          SkillTigerTrap,
		Name:        "Tiger Trap",
		Description: "Force the opponent's next stone onto the border.",
		Cooldown:    5,
		effect: func(ctx SkillContext) error {
			ctx.SetForceBorder(ctx.Player().Opponent())
			return nil
		},
	},
	{
		ID:          SkillWaterDrop,
		Name:        "Water Drop",
		Description: "Mark two cells that turn into stones after four turns.",
		Cooldown:    8,
		effect: func(ctx SkillContext) error {
			ctx.Arm(PendingInteraction{
				Type:      PendingWaterDropTarget,
				Player:    ctx.Player(),
				Remaining: ctx.Rules().WaterDropCount,
			})
			return nil
		},
	},
	{
		ID:          SkillResurrection,
		Name:        "Resurrection",
		Description: "Repair one destroyed cell.",
		Cooldown:    7,
		effect: func(ctx SkillContext) error {
			if len(ctx.Board().Destroyed()) == 0 {
				return ErrNothingToRepair
			}
			ctx.Arm(PendingInteraction{Type: PendingRepairTarget, Player: ctx.Player()})
			return nil
		},
	},
	{
		ID:          SkillCleanSweep,
		Name:        "Clean Sweep",
		Description: "Clear a whole row, column or diagonal.",
		Cooldown:    7,
		effect: func(ctx SkillContext) error {
			ctx.Arm(PendingInteraction{Type: PendingSweepAnchor, Player: ctx.Player()})
			return nil
		},
	},
}

// flyingSand relocates a random opposing stone to a random playable cell in
// the square neighbourhood around it. No-op without stones or destinations.
func flyingSand(ctx SkillContext) error {
	b := ctx.Board()
	opp := ctx.Player().Opponent()
	stones := b.Stones(opp)
	if len(stones) == 0 {
		return nil
	}
	from := stones[ctx.RandN(len(stones))]

	r := ctx.Rules().FlyingSandRadius
	var candidates []Point
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if b.IsEmpty(from.X+dx, from.Y+dy) {
				candidates = append(candidates, Point{from.X + dx, from.Y + dy})
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	to := candidates[ctx.RandN(len(candidates))]
	b.Grid[from.Y][from.X] = None
	b.Grid[to.Y][to.X] = opp
	return nil
}

// polarityReverse swaps every black stone to white and vice versa.
// Destroyed cells hold no stone and are unaffected.
func polarityReverse(ctx SkillContext) error {
	b := ctx.Board()
	for y := 0; y < b.Size; y++ {
		for x := 0; x < b.Size; x++ {
			if v := b.Grid[y][x]; v.Valid() {
				b.Grid[y][x] = v.Opponent()
			}
		}
	}
	return nil
}

// Cooldown is the remaining cooldown per player. It serializes as
// {"1": n, "2": n}; a bare number is accepted as the legacy shared form.
type Cooldown struct {
	PerPlayer[int]
}

func (c Cooldown) MarshalJSON() ([]byte, error) { return c.PerPlayer.MarshalJSON() }

func (c *Cooldown) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		c.PerPlayer = PerPlayer[int]{n, n}
		return nil
	}
	return c.PerPlayer.UnmarshalJSON(data)
}

// Registry holds the skill definitions and the per-player cooldown counters.
type Registry struct {
	skills    []Skill
	remaining map[SkillID]Cooldown
}

// NewRegistry returns a registry with every skill ready for both players.
func NewRegistry() *Registry {
	r := &Registry{skills: catalog}
	r.Reset()
	return r
}

// Reset clears every cooldown.
func (r *Registry) Reset() {
	r.remaining = make(map[SkillID]Cooldown, len(r.skills))
	for _, s := range r.skills {
		r.remaining[s.ID] = Cooldown{}
	}
}

// List returns the skill definitions in display order.
func (r *Registry) List() []Skill { return r.skills }

// Lookup returns the definition of id.
func (r *Registry) Lookup(id SkillID) (Skill, bool) {
	for _, s := range r.skills {
		if s.ID == id {
			return s, true
		}
	}
	return Skill{}, false
}

// Remaining returns the cooldown left on id for player.
func (r *Registry) Remaining(id SkillID, player Player) int {
	cd := r.remaining[id]
	return cd.Get(player)
}

// CanUse reports whether id is off cooldown for player.
func (r *Registry) CanUse(id SkillID, player Player) bool {
	return r.Remaining(id, player) <= 0
}

// Activate runs the skill effect for ctx.Player(). The cooldown starts only
// when the effect succeeds; failures leave board, turn state and cooldowns
// untouched.
func (r *Registry) Activate(id SkillID, ctx SkillContext) error {
	s, ok := r.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSkill, id)
	}
	player := ctx.Player()
	if left := r.Remaining(id, player); left > 0 {
		return fmt.Errorf("%w: %s has %d turn(s) left", ErrOnCooldown, id, left)
	}
	if err := s.effect(ctx); err != nil {
		return err
	}
	cd := r.remaining[id]
	cd.Set(player, s.Cooldown)
	r.remaining[id] = cd
	return nil
}

// TickAll decrements every cooldown of player by one, floored at zero.
func (r *Registry) TickAll(player Player) {
	for id, cd := range r.remaining {
		if v := cd.Get(player); v > 0 {
			cd.Set(player, v-1)
			r.remaining[id] = cd
		}
	}
}

// Cooldowns returns a copy of the cooldown table.
func (r *Registry) Cooldowns() map[SkillID]Cooldown {
	out := make(map[SkillID]Cooldown, len(r.remaining))
	for id, cd := range r.remaining {
		out[id] = cd
	}
	return out
}

// SetCooldowns overwrites the cooldowns of the known skills present in m.
// Unknown ids are ignored; skills missing from m keep their current value.
func (r *Registry) SetCooldowns(m map[SkillID]Cooldown) {
	for _, s := range r.skills {
		if cd, ok := m[s.ID]; ok {
			r.remaining[s.ID] = cd
		}
	}
}

// Clone returns an independent copy.
func (r *Registry) Clone() *Registry {
	return &Registry{skills: r.skills, remaining: r.Cooldowns()}
}
