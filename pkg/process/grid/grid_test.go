package grid

import (
	"reflect"
	"testing"
)

func TestIslandPerimeter(t *testing.T) {
	island := [][]int{
		{0, 0, 0, 0, 0, 0},
		{0, 1, 0, 0, 0, 0},
		{0, 1, 1, 1, 0, 0},
		{0, 0, 1, 0, 0, 0},
	}
	if got := IslandPerimeter(island); got != 12 {
		t.Errorf("IslandPerimeter = %d, want 12", got)
	}

	if got := IslandPerimeter([][]int{{1}}); got != 4 {
		t.Errorf("single cell perimeter = %d, want 4", got)
	}
	if got := IslandPerimeter([][]int{{0, 0}, {0, 0}}); got != 0 {
		t.Errorf("water-only perimeter = %d, want 0", got)
	}
	if got := IslandPerimeter(nil); got != 0 {
		t.Errorf("nil grid perimeter = %d, want 0", got)
	}
}

func TestRotateMatrix(t *testing.T) {
	m := [][]int{
		{1, 2, 3},
		{4, 5, 6},
		{7, 8, 9},
	}
	RotateMatrix(m)
	want := [][]int{
		{7, 4, 1},
		{8, 5, 2},
		{9, 6, 3},
	}
	if !reflect.DeepEqual(m, want) {
		t.Errorf("RotateMatrix = %v, want %v", m, want)
	}
}

func TestRotateMatrixSizes(t *testing.T) {
	one := [][]int{{1}}
	RotateMatrix(one)
	if !reflect.DeepEqual(one, [][]int{{1}}) {
		t.Errorf("1x1 rotation changed the matrix: %v", one)
	}

	two := [][]int{
		{1, 2},
		{3, 4},
	}
	RotateMatrix(two)
	if !reflect.DeepEqual(two, [][]int{{3, 1}, {4, 2}}) {
		t.Errorf("2x2 rotation = %v", two)
	}

	var empty [][]int
	RotateMatrix(empty) // must not panic
}
