package synchronizer

import (
	"slices"
	"time"

	"github.com/rocketscienceinc/bingo-backend/internal/bingo"
	"github.com/rocketscienceinc/bingo-backend/internal/entity"
)

// View is a consistent copy of one session as seen by one participant.
type View struct {
	Session      *entity.Session `json:"game"`
	Players      []PlayerView    `json:"players"`
	Ranking      []string        `json:"ranking"`
	Me           *entity.Player  `json:"me,omitempty"`
	WinningLine  []int           `json:"winning_line,omitempty"`
	ClosestToWin int             `json:"closest_to_win"`
	Round        int64           `json:"round"`
}

// PlayerView is what one participant may see about another: no marked cells.
type PlayerView struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	IsHost       bool       `json:"is_host"`
	HasWon       bool       `json:"has_won"`
	WonAt        *time.Time `json:"won_at,omitempty"`
	ClosestToWin int        `json:"closest_to_win"`
	IsMe         bool       `json:"is_me"`
}

func (that *Synchronizer) viewLocked() View {
	if that.session == nil {
		return View{}
	}

	ordered := that.orderedPlayersLocked()

	view := View{
		Session: that.session.Clone(),
		Players: make([]PlayerView, 0, len(ordered)),
		Ranking: make([]string, 0, len(ordered)),
		Round:   that.session.Round,
	}

	for _, player := range ordered {
		view.Players = append(view.Players, PlayerView{
			ID:           player.ID,
			Name:         player.Name,
			IsHost:       player.IsHost,
			HasWon:       player.HasWon,
			WonAt:        player.Clone().WonAt,
			ClosestToWin: player.ClosestToWin(),
			IsMe:         player.ID == that.myPlayerID,
		})
	}

	for _, player := range RankPlayers(ordered) {
		view.Ranking = append(view.Ranking, player.ID)
	}

	if me, ok := that.players[that.myPlayerID]; ok {
		cells := me.Cells()

		view.Me = me.Clone()
		view.WinningLine = bingo.Evaluate(cells).WinningLine
		view.ClosestToWin = bingo.ClosestToWin(cells)
	}

	return view
}

func (that *Synchronizer) orderedPlayersLocked() []*entity.Player {
	players := make([]*entity.Player, 0, len(that.players))
	for _, player := range that.players {
		players = append(players, player.Clone())
	}

	slices.SortFunc(players, comparePlayers)

	return players
}

// RankPlayers orders players for the leaderboard: winners first, then by how
// close each is to a line, then by join order. The input is not modified.
func RankPlayers(players []*entity.Player) []*entity.Player {
	ranked := slices.Clone(players)

	slices.SortStableFunc(ranked, func(a, b *entity.Player) int {
		if a.HasWon != b.HasWon {
			if a.HasWon {
				return -1
			}
			return 1
		}

		if closestA, closestB := a.ClosestToWin(), b.ClosestToWin(); closestA != closestB {
			return closestB - closestA
		}

		return comparePlayers(a, b)
	})

	return ranked
}

func comparePlayers(a, b *entity.Player) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}
