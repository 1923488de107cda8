package bingo

const (
	Size      = 5
	CellCount = Size * Size
	FreeCell  = 12

	// StatementCount is the number of statements a board carries, every cell but the free one.
	StatementCount = CellCount - 1
)

// lines lists every winning line in tie-break order: rows top to bottom,
// columns left to right, then the two diagonals.
var lines = [12][Size]int{
	{0, 1, 2, 3, 4},
	{5, 6, 7, 8, 9},
	{10, 11, 12, 13, 14},
	{15, 16, 17, 18, 19},
	{20, 21, 22, 23, 24},
	{0, 5, 10, 15, 20},
	{1, 6, 11, 16, 21},
	{2, 7, 12, 17, 22},
	{3, 8, 13, 18, 23},
	{4, 9, 14, 19, 24},
	{0, 6, 12, 18, 24},
	{4, 8, 12, 16, 20},
}

type Result struct {
	Won         bool  `json:"won"`
	WinningLine []int `json:"winning_line,omitempty"`
}

// Evaluate reports the first fully marked line. Cells are taken as given, so
// callers pass the overlaid view with the free cell already set.
func Evaluate(cells [CellCount]bool) Result {
	for _, line := range lines {
		if countMarked(cells, line) == Size {
			winning := make([]int, Size)
			copy(winning, line[:])

			return Result{Won: true, WinningLine: winning}
		}
	}

	return Result{}
}

// ClosestToWin returns the highest number of marked cells on any single line.
func ClosestToWin(cells [CellCount]bool) int {
	best := 0
	for _, line := range lines {
		if marked := countMarked(cells, line); marked > best {
			best = marked
		}
	}

	return best
}

// Lines returns a copy of the winning lines in tie-break order.
func Lines() [][Size]int {
	out := make([][Size]int, len(lines))
	copy(out, lines[:])

	return out
}

// StatementIndex maps a cell index to its position in the 24-statement board.
// The free cell has no statement and reports false.
func StatementIndex(cell int) (int, bool) {
	switch {
	case cell < 0 || cell >= CellCount || cell == FreeCell:
		return 0, false
	case cell < FreeCell:
		return cell, true
	default:
		return cell - 1, true
	}
}

func countMarked(cells [CellCount]bool, line [Size]int) int {
	marked := 0
	for _, idx := range line {
		if cells[idx] {
			marked++
		}
	}

	return marked
}
