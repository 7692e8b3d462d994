// Package search provides pure backtracking and graph-reachability helpers.
package search

// CanUnlockAll reports whether every box can be opened starting from box 0,
// which is always unlocked. Each box holds keys to other boxes; a depth-first
// walk over the keys marks everything reachable.
func CanUnlockAll(boxes [][]int) bool {
	n := len(boxes)
	if n == 0 {
		return true
	}

	unlocked := make([]bool, n)

	var open func(box int)
	open = func(box int) {
		unlocked[box] = true
		for _, key := range boxes[box] {
			if key >= 0 && key < n && !unlocked[key] {
				open(key)
			}
		}
	}
	open(0)

	for _, ok := range unlocked {
		if !ok {
			return false
		}
	}
	return true
}

// Position is a queen placement as [row, col] coordinates.
type Position [2]int

// NQueens returns every arrangement of n queens on an n x n board such that
// no two queens attack each other. Solutions are emitted with rows in
// ascending order and columns explored left to right, so the overall order is
// deterministic.
func NQueens(n int) [][]Position {
	columns := make(map[int]bool)
	posDiagonals := make(map[int]bool)
	negDiagonals := make(map[int]bool)

	canPlace := func(row, col int) bool {
		return !columns[col] && !posDiagonals[row+col] && !negDiagonals[row-col]
	}

	var placeQueens func(row int) [][]Position
	placeQueens = func(row int) [][]Position {
		if row == n {
			return [][]Position{{}}
		}

		var solutions [][]Position
		for col := 0; col < n; col++ {
			if !canPlace(row, col) {
				continue
			}

			columns[col] = true
			posDiagonals[row+col] = true
			negDiagonals[row-col] = true

			for _, placement := range placeQueens(row + 1) {
				solution := make([]Position, 0, len(placement)+1)
				solution = append(solution, Position{row, col})
				solution = append(solution, placement...)
				solutions = append(solutions, solution)
			}

			delete(columns, col)
			delete(posDiagonals, row+col)
			delete(negDiagonals, row-col)
		}
		return solutions
	}

	return placeQueens(0)
}
