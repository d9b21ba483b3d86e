package game

import (
	"slices"
	"strings"
)

// PlayerView is a player entry as broadcast to clients, enriched with the
// aggregate counters clients render next to the wallet.
type PlayerView struct {
	Player
	Wins       int `json:"wins"`
	AdminGiven int `json:"adminGiven"`
}

// Snapshot is the complete outward room state. Clients never derive wallet or
// pot locally, they re-render from the latest one of these.
type Snapshot struct {
	Players     []PlayerView   `json:"players"`
	Pot         int            `json:"pot"`
	ModeratorID string         `json:"moderatorId"`
	Ledger      map[string]int `json:"ledger"`
	TotalGames  int            `json:"totalGames"`
}

// Project builds the snapshot from current state. Offline players are kept
// server-side for reconnection but filtered out of the broadcast.
func (r *Room) Project() Snapshot {
	players := make([]PlayerView, 0, len(r.players))
	for _, p := range r.players {
		if !p.Online {
			continue
		}
		players = append(players, PlayerView{
			Player:     *p,
			Wins:       r.wins[p.Name],
			AdminGiven: r.ledger[p.Name],
		})
	}
	slices.SortFunc(players, func(a, b PlayerView) int {
		return strings.Compare(a.Name, b.Name)
	})

	ledger := make(map[string]int, len(r.ledger))
	for name, given := range r.ledger {
		ledger[name] = given
	}

	return Snapshot{
		Players:     players,
		Pot:         r.pot,
		ModeratorID: r.moderatorID,
		Ledger:      ledger,
		TotalGames:  r.totalGames,
	}
}
