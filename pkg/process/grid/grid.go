// Package grid provides pure 2D-grid helpers.
package grid

// IslandPerimeter returns the perimeter of the island described by grid,
// where 1 is land and 0 is water. The grid is surrounded by water and
// contains at most one island with no interior lakes.
func IslandPerimeter(grid [][]int) int {
	perimeter := 0

	for i := range grid {
		for j := range grid[i] {
			if grid[i][j] != 1 {
				continue
			}
			if i == 0 || grid[i-1][j] == 0 {
				perimeter++
			}
			if i == len(grid)-1 || grid[i+1][j] == 0 {
				perimeter++
			}
			if j == 0 || grid[i][j-1] == 0 {
				perimeter++
			}
			if j == len(grid[i])-1 || grid[i][j+1] == 0 {
				perimeter++
			}
		}
	}
	return perimeter
}

// RotateMatrix rotates an n x n matrix 90 degrees clockwise in place:
// transpose, then reverse each row.
func RotateMatrix(matrix [][]int) {
	n := len(matrix)

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			matrix[i][j], matrix[j][i] = matrix[j][i], matrix[i][j]
		}
	}

	for i := 0; i < n; i++ {
		for l, r := 0, n-1; l < r; l, r = l+1, r-1 {
			matrix[i][l], matrix[i][r] = matrix[i][r], matrix[i][l]
		}
	}
}
