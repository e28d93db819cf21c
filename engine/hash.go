package engine

const (
	fnvOffset = uint64(14695981039346656037)
	fnvPrime  = uint64(1099511628211)
)

// StateHash returns a 64-bit FNV-1a hash over everything a snapshot carries.
// Two states with equal snapshots hash equally; the RNG stream, the transient
// message and any armed interaction are not part of it.
func (g *GameState) StateHash() uint64 {
	h := fnvOffset
	mix := func(v uint64) {
		h ^= v
		h *= fnvPrime
	}

	mix(uint64(g.Board.Size))
	for y := 0; y < g.Board.Size; y++ {
		for x := 0; x < g.Board.Size; x++ {
			mix(uint64(g.Board.Grid[y][x]))
		}
	}
	for _, p := range g.Board.Destroyed() {
		mix(uint64(p.X)<<32 | uint64(p.Y))
	}
	mix(uint64(g.CurrentPlayer) << 48)
	mix(uint64(g.TurnNumber) << 32)
	for _, p := range [...]Player{Black, White} {
		mix(boolBits(g.SkipNextTurn.Get(p)) | boolBits(g.ForceBorder.Get(p))<<1)
	}
	for _, d := range g.WaterDrops {
		mix(uint64(d.X)<<32 | uint64(d.Y)<<8 | uint64(d.Owner))
		mix(uint64(d.TurnsLeft))
	}
	for _, sk := range g.Skills.List() {
		mix(uint64(g.Skills.Remaining(sk.ID, Black))<<8 | uint64(g.Skills.Remaining(sk.ID, White)))
	}
	if g.GameOver {
		mix(1<<56 | uint64(g.Winner))
	}
	return h
}

func boolBits(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
