package engine

// lineDirs are the four axes through a cell: horizontal, vertical, and both
// diagonals. Each is walked forward and backward.
var lineDirs = [4][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}}

// CheckWin reports whether the stone at (x, y) completes a run of at least
// needed contiguous cells of player along any axis. grid is indexed grid[y][x].
func CheckWin(grid [][]Player, x, y int, player Player, needed int) bool {
	size := len(grid)
	in := func(cx, cy int) bool { return cx >= 0 && cx < size && cy >= 0 && cy < size }

	for _, d := range lineDirs {
		count := 1

		// forward
		nx, ny := x+d[0], y+d[1]
		for in(nx, ny) && grid[ny][nx] == player {
			count++
			nx += d[0]
			ny += d[1]
		}

		// backward
		nx, ny = x-d[0], y-d[1]
		for in(nx, ny) && grid[ny][nx] == player {
			count++
			nx -= d[0]
			ny -= d[1]
		}

		if count >= needed {
			return true
		}
	}
	return false
}
