package usecase

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rocketscienceinc/bingo-backend/internal/entity"
)

// BoardFile is a board prepared ahead of time. It is read from either
//
//	name: Standup
//	statements:
//	  - Someone is on mute
//
// a bare YAML list of statements, or plain text with one statement per line.
type BoardFile struct {
	Name       string   `yaml:"name"`
	Statements []string `yaml:"statements"`
}

func ParseBoard(data []byte) (*BoardFile, error) {
	board := &BoardFile{}

	var list []string

	switch {
	case yaml.Unmarshal(data, board) == nil && len(board.Statements) > 0:
	case yaml.Unmarshal(data, &list) == nil && len(list) > 0:
		board = &BoardFile{Statements: list}
	default:
		board = &BoardFile{Statements: parseLines(data)}
	}

	board.Name = strings.TrimSpace(board.Name)
	board.Statements = entity.NormalizeBoard(board.Statements)

	if err := entity.ValidateBoard(board.Statements); err != nil {
		return nil, fmt.Errorf("failed to parse board: %w", err)
	}

	return board, nil
}

// parseLines keeps non-blank lines that are not # comments.
func parseLines(data []byte) []string {
	var lines []string

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		lines = append(lines, line)
	}

	return lines
}
