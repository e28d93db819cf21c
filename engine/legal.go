package engine

// DecisionContext names the kind of input the game is waiting for.
type DecisionContext uint8

const (
	CtxTerminal       DecisionContext = iota // game over, no input accepted
	CtxPlace                                 // stone placement or skill activation
	CtxSkillTarget                           // a cell for the armed skill
	CtxSweepDirection                        // clean-sweep direction menu
)

// DecisionCtx returns the current decision context.
func (g *GameState) DecisionCtx() DecisionContext {
	if g.IsTerminal() {
		return CtxTerminal
	}
	switch g.Pending.Type {
	case PendingNone:
		return CtxPlace
	case PendingSweepDirection:
		return CtxSweepDirection
	}
	return CtxSkillTarget
}

// CanPlaceAt reports whether a click on (x, y) would be accepted right now.
func (g *GameState) CanPlaceAt(x, y int) bool {
	if g.IsTerminal() || !g.Board.InBounds(x, y) {
		return false
	}
	switch g.Pending.Type {
	case PendingSweepDirection:
		return false
	case PendingSweepAnchor:
		return true
	case PendingDestroyTarget:
		return !g.Board.IsDestroyed(x, y)
	case PendingRepairTarget:
		return g.Board.IsDestroyed(x, y)
	case PendingWaterDropTarget:
		return g.Board.IsEmpty(x, y) && g.WaterDropAt(x, y) < 0
	}
	if !g.Board.IsEmpty(x, y) {
		return false
	}
	return !g.ForceBorder.Get(g.CurrentPlayer) || g.Board.IsBorder(x, y)
}

// LegalPlacements returns every cell CanPlaceAt accepts, in row-major order.
func (g *GameState) LegalPlacements() []Point {
	var out []Point
	for y := 0; y < g.Board.Size; y++ {
		for x := 0; x < g.Board.Size; x++ {
			if g.CanPlaceAt(x, y) {
				out = append(out, Point{X: x, Y: y})
			}
		}
	}
	return out
}

// UsableSkills returns the skills the current player could activate now and
// have accepted, in catalog order.
func (g *GameState) UsableSkills() []SkillID {
	if g.DecisionCtx() != CtxPlace {
		return nil
	}
	var out []SkillID
	for _, sk := range g.Skills.List() {
		if !g.Skills.CanUse(sk.ID, g.CurrentPlayer) {
			continue
		}
		if sk.ID == SkillResurrection && len(g.Board.Destroyed()) == 0 {
			continue
		}
		out = append(out, sk.ID)
	}
	return out
}
