package engine

import (
	"encoding/json"
	"testing"
)

func TestPlayer(t *testing.T) {
	tests := []struct {
		p        Player
		opponent Player
		valid    bool
		name     string
	}{
		{None, None, false, "empty"},
		{Black, White, true, "black"},
		{White, Black, true, "white"},
		{Player(7), None, false, "empty"},
	}
	for _, tt := range tests {
		if got := tt.p.Opponent(); got != tt.opponent {
			t.Errorf("%d.Opponent() = %d, want %d", tt.p, got, tt.opponent)
		}
		if got := tt.p.Valid(); got != tt.valid {
			t.Errorf("%d.Valid() = %v, want %v", tt.p, got, tt.valid)
		}
		if got := tt.p.String(); got != tt.name {
			t.Errorf("%d.String() = %q, want %q", tt.p, got, tt.name)
		}
	}
}

func TestPerPlayerIgnoresNonSeats(t *testing.T) {
	var pp PerPlayer[int]
	pp.Set(None, 9)
	pp.Set(White, 3)
	if pp.Get(None) != 0 || pp.Get(Black) != 0 || pp.Get(White) != 3 {
		t.Errorf("unexpected contents %v", pp)
	}
}

func TestPerPlayerJSON(t *testing.T) {
	pp := PerPlayer[bool]{true, false}
	data, err := json.Marshal(pp)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"1":true,"2":false}` {
		t.Errorf("marshal = %s", data)
	}

	var back PerPlayer[bool]
	if err := json.Unmarshal([]byte(`{"2":true}`), &back); err != nil {
		t.Fatal(err)
	}
	if back.Get(Black) || !back.Get(White) {
		t.Errorf("unmarshal = %v", back)
	}

	for _, bad := range []string{`{"0":true}`, `{"x":true}`, `[true,false]`} {
		if err := json.Unmarshal([]byte(bad), &back); err == nil {
			t.Errorf("%s accepted", bad)
		}
	}
}

func TestCooldownLegacyNumber(t *testing.T) {
	var cd Cooldown
	if err := json.Unmarshal([]byte(`3`), &cd); err != nil {
		t.Fatal(err)
	}
	if cd.Get(Black) != 3 || cd.Get(White) != 3 {
		t.Errorf("legacy cooldown = %v, want 3 for both", cd.PerPlayer)
	}
	if err := json.Unmarshal([]byte(`{"1":0,"2":4}`), &cd); err != nil {
		t.Fatal(err)
	}
	if cd.Get(Black) != 0 || cd.Get(White) != 4 {
		t.Errorf("per-player cooldown = %v", cd.PerPlayer)
	}
}
