package engine

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

// busyGame returns a mid-game state touching every snapshot field.
func busyGame(t *testing.T) *GameState {
	t.Helper()
	g := newTestGame(t)
	mustPlace(t, g, 7, 7)
	mustUse(t, g, SkillTigerTrap)
	mustUse(t, g, SkillWaterDrop)
	mustPlace(t, g, 0, 0)
	mustPlace(t, g, 1, 0)
	mustPlace(t, g, 7, 8)
	g.Board.Destroy(3, 3)
	g.SkipNextTurn.Set(White, true)
	return g
}

func TestSnapshotRoundTrip(t *testing.T) {
	g := busyGame(t)
	want := g.Snapshot()

	data, err := json.Marshal(want)
	if err != nil {
		t.Fatal(err)
	}
	s, err := ParseSnapshot(data)
	if err != nil {
		t.Fatalf("ParseSnapshot: %v", err)
	}

	fresh := NewGame(7, DefaultRules())
	if err := fresh.LoadSnapshot(s); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	got := fresh.Snapshot()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
	if !fresh.ForceBorder.Get(Black) || !fresh.SkipNextTurn.Get(White) {
		t.Error("flags lost")
	}
	if fresh.Skills.Remaining(SkillWaterDrop, White) != 7 {
		t.Errorf("water-drop cooldown = %d, want 7", fresh.Skills.Remaining(SkillWaterDrop, White))
	}
}

func TestSnapshotGridEncoding(t *testing.T) {
	g := NewGame(1, Rules{Size: 5})
	g.Board.Place(1, 0, Black)
	g.Board.Place(4, 4, White)

	data, err := json.Marshal(g.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	var raw struct {
		Grid []string `json:"grid"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	want := []string{"01000", "00000", "00000", "00000", "00002"}
	if !reflect.DeepEqual(raw.Grid, want) {
		t.Errorf("grid = %q, want %q", raw.Grid, want)
	}
}

// TestSnapshotLegacyFormats loads the array-of-int grid and bare-number
// cooldowns and checks the result matches the current format.
func TestSnapshotLegacyFormats(t *testing.T) {
	g := busyGame(t)
	want := g.Snapshot()
	data, err := json.Marshal(want)
	if err != nil {
		t.Fatal(err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	legacy := make([][]int, want.Size)
	for y, row := range want.Grid {
		legacy[y] = make([]int, len(row))
		for x, v := range row {
			legacy[y][x] = int(v)
		}
	}
	doc["grid"] = legacy
	data, err = json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}

	s, err := ParseSnapshot(data)
	if err != nil {
		t.Fatalf("ParseSnapshot legacy grid: %v", err)
	}
	if !reflect.DeepEqual(s.Grid, want.Grid) {
		t.Error("legacy grid decoded differently")
	}

	old := `{"size":3,"grid":[[0,1,0],[2,0,0],[0,0,1]],"destroyed":[],"currentPlayer":2,"turn":5,` +
		`"skipNextTurn":{},"forceBorder":{"1":true},"waterDrops":[],` +
		`"skillsCooldowns":{"flying-sand":3,"meteor":2},"gameOver":false}`
	s, err = ParseSnapshot([]byte(old))
	if err != nil {
		t.Fatalf("ParseSnapshot old document: %v", err)
	}
	fresh := NewGame(1, DefaultRules())
	if err := fresh.LoadSnapshot(s); err != nil {
		t.Fatal(err)
	}
	if fresh.Board.Size != 3 || fresh.Board.At(1, 0) != Black || fresh.Board.At(0, 1) != White {
		t.Error("legacy grid not loaded")
	}
	if fresh.Skills.Remaining(SkillFlyingSand, Black) != 3 || fresh.Skills.Remaining(SkillFlyingSand, White) != 3 {
		t.Error("legacy cooldown not applied to both players")
	}
	if fresh.CurrentPlayer != White || fresh.TurnNumber != 5 || !fresh.ForceBorder.Get(Black) {
		t.Error("turn context not loaded")
	}
}

func TestSnapshotMalformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"grid is a string", `{"size":3,"grid":"000000000"}`},
		{"grid is an object", `{"size":3,"grid":{"0":"000"}}`},
		{"short row", `{"size":3,"grid":["000","00","000"]}`},
		{"missing rows", `{"size":3,"grid":["000"]}`},
		{"bad cell char", `{"size":3,"grid":["000","070","000"]}`},
		{"bad cell int", `{"size":2,"grid":[[0,3],[0,0]]}`},
		{"no grid", `{"size":3}`},
		{"not json", `{"size":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSnapshot([]byte(tt.doc))
			if !errors.Is(err, ErrMalformedSnapshot) {
				t.Errorf("err = %v, want ErrMalformedSnapshot", err)
			}
		})
	}
}

func TestLoadSnapshotMalformedLeavesStateUntouched(t *testing.T) {
	g := busyGame(t)
	before := g.Snapshot()

	bad := before
	bad.Grid = bad.Grid[:3]
	if err := g.LoadSnapshot(bad); !errors.Is(err, ErrMalformedSnapshot) {
		t.Fatalf("err = %v, want ErrMalformedSnapshot", err)
	}
	if !reflect.DeepEqual(g.Snapshot(), before) {
		t.Error("state changed by a rejected load")
	}
}

func TestLoadSnapshotClearsPendingAndDefaults(t *testing.T) {
	g := newTestGame(t)
	mustUse(t, g, SkillCleanSweep)

	fresh := NewGame(1, DefaultRules())
	s := fresh.Snapshot()
	s.CurrentPlayer = 0
	s.Turn = 0
	if err := g.LoadSnapshot(s); err != nil {
		t.Fatal(err)
	}
	if g.Pending.Active() {
		t.Error("pending interaction survived load")
	}
	if g.CurrentPlayer != Black || g.TurnNumber != 1 {
		t.Errorf("defaults not applied: player=%v turn=%d", g.CurrentPlayer, g.TurnNumber)
	}
}

func TestSnapshotWinner(t *testing.T) {
	g := newTestGame(t)
	for x := 0; x < 4; x++ {
		g.Board.Place(x, 0, White)
	}
	mustPlace(t, g, 7, 7)
	mustPlace(t, g, 4, 0)

	data, err := json.Marshal(g.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"winner":2`) {
		t.Errorf("winner missing from %s", data)
	}

	s, err := ParseSnapshot(data)
	if err != nil {
		t.Fatal(err)
	}
	fresh := NewGame(1, DefaultRules())
	if err := fresh.LoadSnapshot(s); err != nil {
		t.Fatal(err)
	}
	if !fresh.IsTerminal() || fresh.Winner != White {
		t.Errorf("GameOver=%v Winner=%v", fresh.GameOver, fresh.Winner)
	}
}
