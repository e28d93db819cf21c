package engine

// Full random games driven only through the public surface: LegalPlacements,
// UsableSkills, DecisionCtx, Place, UseSkill, ChooseSweepDirection.

import (
	"math/rand"
	"testing"
)

const maxRandomSteps = 2000

// randomStep applies one legal input chosen by rng and returns a short label,
// or "" when nothing is accepted.
func randomStep(t *testing.T, g *GameState, rng *rand.Rand) string {
	t.Helper()
	switch g.DecisionCtx() {
	case CtxTerminal:
		return ""
	case CtxSweepDirection:
		d := SweepDirection(rng.Intn(4))
		if err := g.ChooseSweepDirection(d); err != nil {
			t.Fatalf("sweep %v rejected: %v", d, err)
		}
		return "dir:" + d.String()
	}

	if skills := g.UsableSkills(); len(skills) > 0 && rng.Intn(5) == 0 {
		id := skills[rng.Intn(len(skills))]
		if err := g.UseSkill(id); err != nil {
			t.Fatalf("usable skill %s rejected: %v", id, err)
		}
		return "skill:" + string(id)
	}

	pts := g.LegalPlacements()
	if len(pts) == 0 {
		if g.Pending.Active() {
			if err := g.CancelInteraction(); err != nil {
				t.Fatalf("cancel: %v", err)
			}
			return "cancel"
		}
		return ""
	}
	p := pts[rng.Intn(len(pts))]
	if err := g.Place(p.X, p.Y); err != nil {
		t.Fatalf("legal placement %v rejected in ctx %d: %v", p, g.DecisionCtx(), err)
	}
	return "place"
}

func playRandom(t *testing.T, seed int64) (*GameState, []string) {
	t.Helper()
	g := NewGame(uint64(seed), Rules{Size: 9})
	rng := rand.New(rand.NewSource(seed))
	var trace []string
	for step := 0; step < maxRandomSteps; step++ {
		turn := g.TurnNumber
		label := randomStep(t, &g, rng)
		if label == "" {
			break
		}
		trace = append(trace, label)
		if g.TurnNumber < turn {
			t.Fatalf("step %d (%s): turn went backwards %d -> %d", step, label, turn, g.TurnNumber)
		}
		checkInvariants(t, &g)
	}
	return &g, trace
}

func checkInvariants(t *testing.T, g *GameState) {
	t.Helper()
	if !g.GameOver && !g.CurrentPlayer.Valid() {
		t.Fatalf("current player %d", g.CurrentPlayer)
	}
	for _, p := range g.Board.Destroyed() {
		if g.Board.At(p.X, p.Y) != None {
			t.Fatalf("destroyed cell %v holds a stone", p)
		}
	}
	for _, d := range g.WaterDrops {
		if d.TurnsLeft <= 0 {
			t.Fatalf("matured drop still pending at (%d,%d)", d.X, d.Y)
		}
	}
	for _, sk := range g.Skills.List() {
		for _, p := range [...]Player{Black, White} {
			if left := g.Skills.Remaining(sk.ID, p); left < 0 || left > sk.Cooldown {
				t.Fatalf("%s cooldown for %v = %d", sk.ID, p, left)
			}
		}
	}
}

func TestRandomGamesStayConsistent(t *testing.T) {
	finished := 0
	for seed := int64(1); seed <= 40; seed++ {
		g, _ := playRandom(t, seed)
		if g.GameOver {
			finished++
			if !g.Winner.Valid() {
				t.Errorf("seed %d: game over without a winner", seed)
			}
			if len(g.LegalPlacements()) != 0 || len(g.UsableSkills()) != 0 {
				t.Errorf("seed %d: input accepted after game over", seed)
			}
		}
	}
	if finished == 0 {
		t.Error("no random game reached a result")
	}
}

func TestRandomGameReplayIsDeterministic(t *testing.T) {
	a, traceA := playRandom(t, 1234)
	b, traceB := playRandom(t, 1234)
	if len(traceA) != len(traceB) {
		t.Fatalf("trace lengths differ: %d vs %d", len(traceA), len(traceB))
	}
	for i := range traceA {
		if traceA[i] != traceB[i] {
			t.Fatalf("step %d: %s vs %s", i, traceA[i], traceB[i])
		}
	}
	if a.StateHash() != b.StateHash() {
		t.Error("same seed produced different final states")
	}
}
