package engine

import "testing"

func containsPoint(pts []Point, p Point) bool {
	for _, q := range pts {
		if q == p {
			return true
		}
	}
	return false
}

func containsSkill(ids []SkillID, id SkillID) bool {
	for _, s := range ids {
		if s == id {
			return true
		}
	}
	return false
}

func TestDecisionCtx(t *testing.T) {
	g := newTestGame(t)
	if ctx := g.DecisionCtx(); ctx != CtxPlace {
		t.Fatalf("fresh game ctx = %d, want CtxPlace", ctx)
	}
	mustUse(t, g, SkillMountainPower)
	if ctx := g.DecisionCtx(); ctx != CtxSkillTarget {
		t.Errorf("after mountain-power ctx = %d, want CtxSkillTarget", ctx)
	}
	if err := g.CancelInteraction(); err != nil {
		t.Fatal(err)
	}
	mustUse(t, g, SkillCleanSweep)
	mustPlace(t, g, 7, 7)
	if ctx := g.DecisionCtx(); ctx != CtxSweepDirection {
		t.Errorf("after anchor ctx = %d, want CtxSweepDirection", ctx)
	}
	g.GameOver = true
	if ctx := g.DecisionCtx(); ctx != CtxTerminal {
		t.Errorf("game over ctx = %d, want CtxTerminal", ctx)
	}
}

func TestLegalPlacementsOrdinary(t *testing.T) {
	g := newTestGame(t)
	pts := g.LegalPlacements()
	if len(pts) != 15*15 {
		t.Fatalf("fresh board: %d legal cells, want 225", len(pts))
	}
	if pts[0] != (Point{0, 0}) || pts[1] != (Point{1, 0}) {
		t.Errorf("not row-major: %v %v", pts[0], pts[1])
	}

	mustPlace(t, g, 7, 7)
	g.Board.Destroy(3, 3)
	pts = g.LegalPlacements()
	if len(pts) != 223 {
		t.Errorf("got %d legal cells, want 223", len(pts))
	}
	for _, p := range []Point{{7, 7}, {3, 3}} {
		if containsPoint(pts, p) {
			t.Errorf("%v should not be legal", p)
		}
	}
}

func TestLegalPlacementsForcedBorder(t *testing.T) {
	g := newTestGame(t)
	mustUse(t, g, SkillTigerTrap)
	mustPlace(t, g, 7, 7)

	pts := g.LegalPlacements()
	if len(pts) != 4*14 {
		t.Fatalf("forced border: %d legal cells, want 56", len(pts))
	}
	for _, p := range pts {
		if !g.Board.IsBorder(p.X, p.Y) {
			t.Errorf("%v is not a border cell", p)
		}
		c := g.Clone()
		if err := c.Place(p.X, p.Y); err != nil {
			t.Errorf("legal %v rejected: %v", p, err)
		}
	}
}

func TestLegalPlacementsPending(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, g *GameState)
		want  int
		in    []Point
		out   []Point
	}{
		{
			name: "destroy target",
			setup: func(t *testing.T, g *GameState) {
				g.Board.Destroy(0, 0)
				mustUse(t, g, SkillMountainPower)
			},
			want: 224,
			in:   []Point{{7, 7}},
			out:  []Point{{0, 0}},
		},
		{
			name: "repair target",
			setup: func(t *testing.T, g *GameState) {
				g.Board.Destroy(0, 0)
				g.Board.Destroy(4, 2)
				mustUse(t, g, SkillResurrection)
			},
			want: 2,
			in:   []Point{{0, 0}, {4, 2}},
			out:  []Point{{7, 7}},
		},
		{
			name: "water drop target",
			setup: func(t *testing.T, g *GameState) {
				mustPlace(t, g, 7, 7)
				mustUse(t, g, SkillWaterDrop)
				mustPlace(t, g, 1, 1)
			},
			want: 223,
			in:   []Point{{2, 2}},
			out:  []Point{{7, 7}, {1, 1}},
		},
		{
			name: "sweep anchor",
			setup: func(t *testing.T, g *GameState) {
				mustPlace(t, g, 7, 7)
				g.Board.Destroy(0, 0)
				mustUse(t, g, SkillCleanSweep)
			},
			want: 225,
			in:   []Point{{7, 7}, {0, 0}},
		},
		{
			name: "sweep direction",
			setup: func(t *testing.T, g *GameState) {
				mustUse(t, g, SkillCleanSweep)
				mustPlace(t, g, 7, 7)
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGame(t)
			tt.setup(t, g)
			pts := g.LegalPlacements()
			if len(pts) != tt.want {
				t.Errorf("got %d legal cells, want %d", len(pts), tt.want)
			}
			for _, p := range tt.in {
				if !containsPoint(pts, p) {
					t.Errorf("%v should be legal", p)
				}
				if c := g.Clone(); c.Place(p.X, p.Y) != nil {
					t.Errorf("legal %v rejected", p)
				}
			}
			for _, p := range tt.out {
				if containsPoint(pts, p) {
					t.Errorf("%v should not be legal", p)
				}
				if c := g.Clone(); c.Place(p.X, p.Y) == nil {
					t.Errorf("illegal %v accepted", p)
				}
			}
		})
	}
}

func TestUsableSkills(t *testing.T) {
	g := newTestGame(t)
	got := g.UsableSkills()
	if len(got) != len(g.Skills.List())-1 {
		t.Errorf("fresh game: %d usable skills, want all but resurrection", len(got))
	}
	if containsSkill(got, SkillResurrection) {
		t.Error("resurrection usable with nothing destroyed")
	}

	g.Board.Destroy(0, 0)
	if !containsSkill(g.UsableSkills(), SkillResurrection) {
		t.Error("resurrection should be usable once a cell is destroyed")
	}

	mustUse(t, g, SkillStillWater)
	if containsSkill(g.UsableSkills(), SkillStillWater) {
		t.Error("still-water usable during its cooldown")
	}

	mustUse(t, g, SkillMountainPower)
	if got := g.UsableSkills(); got != nil {
		t.Errorf("skills usable while an interaction is armed: %v", got)
	}
}

func TestUsableSkillsAccepted(t *testing.T) {
	g := newTestGame(t)
	g.Board.Destroy(5, 5)
	for _, id := range g.UsableSkills() {
		c := g.Clone()
		if err := c.UseSkill(id); err != nil {
			t.Errorf("usable %s rejected: %v", id, err)
		}
	}
}
