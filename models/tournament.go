package models

import (
	"time"

	"github.com/DioBrando1866/tekken-tournaments/brackets"
)

// TournamentStatus mirrors the status column of the tournaments table.
type TournamentStatus string

const (
	StatusRegistration TournamentStatus = "registration"
	StatusActive       TournamentStatus = "active"
	StatusCompleted    TournamentStatus = "completed"
)

// Tournament is one competition and its bracket settings.
type Tournament struct {
	ID               int              `json:"id" db:"id"`
	Name             string           `json:"name" db:"name"`
	Description      *string          `json:"description,omitempty" db:"description"`
	Type             brackets.Mode    `json:"type" db:"tournament_type"`
	Date             time.Time        `json:"date" db:"date"`
	RoundsPerMatch   int              `json:"rounds_per_match" db:"rounds_per_match"`
	MatchTimeMinutes *int             `json:"match_time_minutes,omitempty" db:"match_time_minutes"`
	MaxPlayers       int              `json:"max_players" db:"max_players"`
	IsPublic         bool             `json:"is_public" db:"is_public"`
	PasswordHash     *string          `json:"-" db:"password_hash"`
	Color            *string          `json:"color,omitempty" db:"color"`
	CreatorID        string           `json:"creator_id" db:"creator_id"`
	Status           TournamentStatus `json:"status" db:"status"`
	ChampionPlayerID *string          `json:"champion_player_id,omitempty" db:"champion_player_id"`
	ArchiveKey       *string          `json:"-" db:"bracket_archive_key"`
	ArchiveURL       *string          `json:"archive_url,omitempty" db:"-"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`

	Players []Player         `json:"players,omitempty" db:"-"`
	Bracket *BracketSnapshot `json:"bracket,omitempty" db:"-"`
}

// MaxScore is the per-match target for score brackets.
func (t Tournament) MaxScore() int {
	if t.RoundsPerMatch < 1 {
		return 1
	}
	return t.RoundsPerMatch
}

// IsOpenForRegistration reports whether players can still join.
func (t Tournament) IsOpenForRegistration() bool {
	return t.Status == StatusRegistration
}
