package models

import (
	"time"

	"github.com/DioBrando1866/tekken-tournaments/brackets"
)

type Player struct {
	ID           string    `json:"id"`
	TournamentID int       `json:"tournament_id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

// Entrant converts the player into a bracket entry.
func (p Player) Entrant() brackets.Player {
	return brackets.Player{ID: p.ID, Name: p.Name}
}

// Entrants converts a roster into bracket entries, preserving order.
func Entrants(players []Player) []brackets.Player {
	out := make([]brackets.Player, len(players))
	for i, p := range players {
		out[i] = p.Entrant()
	}
	return out
}
