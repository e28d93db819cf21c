package engine

// PendingType describes a skill interaction waiting for further input.
// At most one interaction is armed at a time.
type PendingType uint8

const (
	PendingNone            PendingType = iota // 0
	PendingDestroyTarget                      // 1: mountain-power
	PendingRepairTarget                       // 2: resurrection
	PendingWaterDropTarget                    // 3: water-drop, Remaining targets left
	PendingSweepAnchor                        // 4: clean-sweep, waiting for a cell
	PendingSweepDirection                     // 5: clean-sweep, Anchor chosen
)

var pendingNames = [...]string{
	PendingNone:            "none",
	PendingDestroyTarget:   "awaiting-destroy-target",
	PendingRepairTarget:    "awaiting-repair-target",
	PendingWaterDropTarget: "awaiting-water-drop-targets",
	PendingSweepAnchor:     "awaiting-clean-sweep",
	PendingSweepDirection:  "choosing-sweep-direction",
}

func (t PendingType) String() string {
	if int(t) < len(pendingNames) {
		return pendingNames[t]
	}
	return "unknown"
}

// PendingInteraction is the armed follow-up step of a skill.
type PendingInteraction struct {
	Type      PendingType
	Player    Player // who armed it
	Remaining int    // water-drop targets left
	Anchor    Point  // clean-sweep anchor
}

// Active reports whether an interaction is armed.
func (p PendingInteraction) Active() bool { return p.Type != PendingNone }

// SweepDirection selects the line cleared by clean-sweep.
type SweepDirection uint8

const (
	SweepRow          SweepDirection = iota // horizontal through the anchor
	SweepColumn                             // vertical through the anchor
	SweepDiagonal                           // "\" : y - x constant
	SweepAntiDiagonal                       // "/" : x + y constant
)

var sweepNames = [...]string{"horizontal", "vertical", "diagonal1", "diagonal2"}

func (d SweepDirection) String() string {
	if int(d) < len(sweepNames) {
		return sweepNames[d]
	}
	return "unknown"
}

// ParseSweepDirection maps a direction name back to its value.
func ParseSweepDirection(s string) (SweepDirection, bool) {
	for i, n := range sweepNames {
		if n == s {
			return SweepDirection(i), true
		}
	}
	return 0, false
}

// SweepLine returns every in-bounds cell on the full line through anchor in
// direction d, ordered by ascending x (ascending y for columns).
func SweepLine(size int, anchor Point, d SweepDirection) []Point {
	var out []Point
	switch d {
	case SweepRow:
		for i := 0; i < size; i++ {
			out = append(out, Point{i, anchor.Y})
		}
	case SweepColumn:
		for i := 0; i < size; i++ {
			out = append(out, Point{anchor.X, i})
		}
	case SweepDiagonal:
		offset := anchor.Y - anchor.X
		for i := 0; i < size; i++ {
			if y := i + offset; y >= 0 && y < size {
				out = append(out, Point{i, y})
			}
		}
	case SweepAntiDiagonal:
		sum := anchor.X + anchor.Y
		for i := 0; i < size; i++ {
			if y := sum - i; y >= 0 && y < size {
				out = append(out, Point{i, y})
			}
		}
	}
	return out
}
