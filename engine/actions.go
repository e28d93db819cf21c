package engine

import "fmt"

// Place handles a board click at (x, y). An armed interaction consumes the
// click first; otherwise it is an ordinary stone placement for the current
// player. Rejected clicks return an error and change nothing.
func (g *GameState) Place(x, y int) error {
	if g.IsTerminal() {
		return ErrGameOver
	}
	if !g.Board.InBounds(x, y) {
		return fmt.Errorf("%w: (%d,%d)", ErrInvalidCoordinate, x, y)
	}
	g.Message = ""

	switch g.Pending.Type {
	case PendingSweepDirection:
		// Only the direction menu resolves this step.
		return fmt.Errorf("%w: choose a sweep direction", ErrInteractionPending)

	case PendingSweepAnchor:
		g.Pending = PendingInteraction{
			Type:   PendingSweepDirection,
			Player: g.Pending.Player,
			Anchor: Point{x, y},
		}
		return nil

	case PendingDestroyTarget:
		if g.Board.IsDestroyed(x, y) {
			return fmt.Errorf("%w: (%d,%d) is already destroyed", ErrCellUnavailable, x, y)
		}
		g.Board.Destroy(x, y)
		g.Pending = PendingInteraction{}
		g.EndTurn(false)
		return nil

	case PendingRepairTarget:
		if !g.Board.IsDestroyed(x, y) {
			return fmt.Errorf("%w: (%d,%d) is not destroyed", ErrCellUnavailable, x, y)
		}
		g.Board.Repair(x, y)
		g.Pending = PendingInteraction{}
		g.EndTurn(false)
		return nil

	case PendingWaterDropTarget:
		return g.addWaterDrop(x, y)
	}

	return g.placeStone(x, y)
}

// addWaterDrop consumes one water-drop target. The turn does not advance when
// the last target is chosen; the same player keeps the move.
func (g *GameState) addWaterDrop(x, y int) error {
	if !g.Board.IsEmpty(x, y) || g.WaterDropAt(x, y) >= 0 {
		return fmt.Errorf("%w: (%d,%d)", ErrCellUnavailable, x, y)
	}
	g.WaterDrops = append(g.WaterDrops, WaterDrop{
		X:         x,
		Y:         y,
		Owner:     g.CurrentPlayer,
		TurnsLeft: g.Rules.WaterDropDelay,
	})
	g.Pending.Remaining--
	if g.Pending.Remaining <= 0 {
		g.Pending = PendingInteraction{}
		return nil
	}
	g.Message = fmt.Sprintf("choose %d more water drop target(s)", g.Pending.Remaining)
	return nil
}

// placeStone is an ordinary placement: border rule, water-drop interrupt,
// stone, win check, end of turn.
func (g *GameState) placeStone(x, y int) error {
	if !g.Board.IsEmpty(x, y) {
		return fmt.Errorf("%w: (%d,%d)", ErrCellUnavailable, x, y)
	}
	player := g.CurrentPlayer
	if g.ForceBorder.Get(player) {
		if !g.Board.IsBorder(x, y) {
			g.Message = ErrForcedBorder.Error()
			return ErrForcedBorder
		}
		g.ForceBorder.Set(player, false)
	}

	if i := g.WaterDropAt(x, y); i >= 0 {
		g.WaterDrops = append(g.WaterDrops[:i], g.WaterDrops[i+1:]...)
		g.Message = "water drop interrupted"
	}

	g.Board.Place(x, y, player)
	if CheckWin(g.Board.Grid, x, y, player, g.Rules.WinLength) {
		g.finish(player)
		return nil
	}
	g.EndTurn(true)
	return nil
}

// UseSkill activates skill id for the current player. Skills are accepted only
// while no other interaction is armed.
func (g *GameState) UseSkill(id SkillID) error {
	if g.IsTerminal() {
		return ErrGameOver
	}
	if g.Pending.Active() {
		return fmt.Errorf("%w: %s", ErrInteractionPending, g.Pending.Type)
	}
	g.Message = ""
	return g.Skills.Activate(id, skillCtx{g})
}

// ChooseSweepDirection resolves clean-sweep: every non-destroyed cell on the
// line through the anchor is cleared, drops on cleared cells are cancelled,
// and the turn ends without a placement.
func (g *GameState) ChooseSweepDirection(d SweepDirection) error {
	if g.IsTerminal() {
		return ErrGameOver
	}
	if g.Pending.Type != PendingSweepDirection {
		return fmt.Errorf("%w: not choosing a sweep direction", ErrNoInteraction)
	}
	if d > SweepAntiDiagonal {
		return fmt.Errorf("unknown sweep direction %d", d)
	}
	g.Message = ""

	cleared := make(map[Point]struct{})
	for _, p := range SweepLine(g.Board.Size, g.Pending.Anchor, d) {
		if g.Board.IsDestroyed(p.X, p.Y) {
			continue
		}
		g.Board.Remove(p.X, p.Y)
		cleared[p] = struct{}{}
	}
	kept := g.WaterDrops[:0]
	for _, drop := range g.WaterDrops {
		if _, ok := cleared[Point{drop.X, drop.Y}]; !ok {
			kept = append(kept, drop)
		}
	}
	g.WaterDrops = kept

	g.Pending = PendingInteraction{}
	g.EndTurn(false)
	return nil
}

// CancelInteraction disarms the pending interaction. A cooldown already
// started by the skill stays in effect.
func (g *GameState) CancelInteraction() error {
	if !g.Pending.Active() {
		return ErrNoInteraction
	}
	g.Pending = PendingInteraction{}
	g.Message = ""
	return nil
}

// EndTurn closes the acting player's turn. advance is false for turns that
// end through a skill instead of a placement.
func (g *GameState) EndTurn(advance bool) {
	acting := g.CurrentPlayer
	if advance {
		g.TurnNumber++
	}
	g.Skills.TickAll(acting)
	g.updateWaterDrops()

	g.CurrentPlayer = acting.Opponent()
	if g.SkipNextTurn.Get(g.CurrentPlayer) {
		g.SkipNextTurn.Set(g.CurrentPlayer, false)
		g.Message = fmt.Sprintf("%s's turn was skipped", g.CurrentPlayer)
		g.TurnNumber++
		g.CurrentPlayer = g.CurrentPlayer.Opponent()
	}
}

// updateWaterDrops ages every drop by one turn. A drop reaching zero becomes
// a real stone if its cell is still playable and is win-checked; matured
// drops are removed either way.
func (g *GameState) updateWaterDrops() {
	kept := g.WaterDrops[:0]
	var matured []WaterDrop
	for _, d := range g.WaterDrops {
		d.TurnsLeft--
		if d.TurnsLeft > 0 {
			kept = append(kept, d)
			continue
		}
		matured = append(matured, d)
	}
	g.WaterDrops = kept

	for _, d := range matured {
		if !g.Board.Place(d.X, d.Y, d.Owner) {
			continue
		}
		if !g.GameOver && CheckWin(g.Board.Grid, d.X, d.Y, d.Owner, g.Rules.WinLength) {
			g.finish(d.Owner)
		}
	}
}

func (g *GameState) finish(winner Player) {
	g.GameOver = true
	g.Winner = winner
	g.Pending = PendingInteraction{}
}
