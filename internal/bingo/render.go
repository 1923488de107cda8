package bingo

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	cellTextWidth = 10
	freeCellText  = "FREE"
)

// RenderCard draws the card as five fixed-width text rows.
func RenderCard(board []string, cells [CellCount]bool) string {
	var sb strings.Builder

	for row := 0; row < Size; row++ {
		parts := make([]string, 0, Size)
		for col := 0; col < Size; col++ {
			idx := row*Size + col

			mark := " "
			if cells[idx] {
				mark = "x"
			}

			parts = append(parts, fmt.Sprintf("[%s] %-*s", mark, cellTextWidth, cellText(board, idx)))
		}

		sb.WriteString(strings.TrimRight(strings.Join(parts, " | "), " "))
		sb.WriteByte('\n')
	}

	return sb.String()
}

func cellText(board []string, idx int) string {
	if idx == FreeCell {
		return freeCellText
	}

	pos, ok := StatementIndex(idx)
	if !ok || pos >= len(board) {
		return ""
	}

	return truncate(strings.TrimSpace(board[pos]), cellTextWidth)
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}

	runes := []rune(s)

	return string(runes[:width-1]) + "~"
}
