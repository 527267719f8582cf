package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/DioBrando1866/tekken-tournaments/models"
)

var (
	ErrPlayerNotFound          = errors.New("player not found")
	ErrPlayerNameConflict      = errors.New("a player with this name is already registered for the tournament")
	ErrPlayerTournamentInvalid = errors.New("player tournament reference is invalid")
)

type PlayerRepository interface {
	Create(ctx context.Context, p *models.Player) error
	ListByTournament(ctx context.Context, tournamentID int) ([]models.Player, error)
	CountByTournament(ctx context.Context, tournamentID int) (int, error)
	Delete(ctx context.Context, tournamentID int, playerID string) error
	// DeleteByTournament removes the whole roster and reports how many
	// players were removed.
	DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int64, error)
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

func (r *postgresPlayerRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresPlayerRepository) Create(ctx context.Context, p *models.Player) error {
	query := `
		INSERT INTO players (id, tournament_id, name)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query, p.ID, p.TournamentID, p.Name).Scan(&p.CreatedAt)
	if err != nil {
		if pqErr, ok := asPQError(err); ok {
			switch pqErr.Code {
			case pqUniqueViolation:
				return ErrPlayerNameConflict
			case pqForeignKeyViolation:
				return ErrPlayerTournamentInvalid
			}
		}
		return fmt.Errorf("failed to create player: %w", err)
	}
	return nil
}

// ListByTournament returns the roster in registration order.
func (r *postgresPlayerRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.Player, error) {
	query := `
		SELECT id, tournament_id, name, created_at
		FROM players
		WHERE tournament_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	players := make([]models.Player, 0)
	for rows.Next() {
		var p models.Player
		if scanErr := rows.Scan(&p.ID, &p.TournamentID, &p.Name, &p.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan player: %w", scanErr)
		}
		players = append(players, p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return players, nil
}

func (r *postgresPlayerRepository) CountByTournament(ctx context.Context, tournamentID int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM players WHERE tournament_id = $1`
	if err := r.db.QueryRowContext(ctx, query, tournamentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count players for tournament %d: %w", tournamentID, err)
	}
	return count, nil
}

func (r *postgresPlayerRepository) Delete(ctx context.Context, tournamentID int, playerID string) error {
	query := `DELETE FROM players WHERE tournament_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, tournamentID, playerID)
	if err != nil {
		return fmt.Errorf("failed to delete player: %w", err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int64, error) {
	result, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM players WHERE tournament_id = $1`, tournamentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete players for tournament %d: %w", tournamentID, err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return removed, nil
}
