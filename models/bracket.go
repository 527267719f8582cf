package models

import (
	"time"

	"github.com/DioBrando1866/tekken-tournaments/brackets"
)

// BracketSnapshot is the stored bracket of a tournament. Version grows by one
// on every successful save and guards concurrent writers.
type BracketSnapshot struct {
	TournamentID int               `json:"tournament_id"`
	Version      int64             `json:"version"`
	Bracket      *brackets.Bracket `json:"bracket"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
