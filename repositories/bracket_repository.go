package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DioBrando1866/tekken-tournaments/brackets"
	"github.com/DioBrando1866/tekken-tournaments/models"
)

var (
	ErrBracketNotFound        = errors.New("bracket not found")
	ErrBracketVersionConflict = errors.New("bracket was modified concurrently")
)

type BracketRepository interface {
	Get(ctx context.Context, tournamentID int) (*models.BracketSnapshot, error)
	// Save stores snap.Bracket if the stored version still equals
	// expectedVersion. An expectedVersion of 0 means no bracket may exist yet.
	// On success snap.Version and snap.UpdatedAt are refreshed.
	Save(ctx context.Context, exec SQLExecutor, snap *models.BracketSnapshot, expectedVersion int64) error
	Delete(ctx context.Context, exec SQLExecutor, tournamentID int) error
}

type postgresBracketRepository struct {
	db *sql.DB
}

func NewPostgresBracketRepository(db *sql.DB) BracketRepository {
	return &postgresBracketRepository{db: db}
}

func (r *postgresBracketRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresBracketRepository) Get(ctx context.Context, tournamentID int) (*models.BracketSnapshot, error) {
	query := `
		SELECT tournament_id, version, snapshot, updated_at
		FROM brackets
		WHERE tournament_id = $1`

	var (
		snap models.BracketSnapshot
		raw  []byte
	)
	err := r.db.QueryRowContext(ctx, query, tournamentID).Scan(&snap.TournamentID, &snap.Version, &raw, &snap.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketNotFound
		}
		return nil, fmt.Errorf("failed to get bracket for tournament %d: %w", tournamentID, err)
	}

	snap.Bracket = &brackets.Bracket{}
	if err := json.Unmarshal(raw, snap.Bracket); err != nil {
		return nil, fmt.Errorf("failed to decode bracket for tournament %d: %w", tournamentID, err)
	}
	return &snap, nil
}

func (r *postgresBracketRepository) Save(ctx context.Context, exec SQLExecutor, snap *models.BracketSnapshot, expectedVersion int64) error {
	raw, err := json.Marshal(snap.Bracket)
	if err != nil {
		return fmt.Errorf("failed to encode bracket: %w", err)
	}

	executor := r.getExecutor(exec)
	var row *sql.Row
	if expectedVersion == 0 {
		row = executor.QueryRowContext(ctx, `
			INSERT INTO brackets (tournament_id, version, snapshot)
			VALUES ($1, 1, $2)
			ON CONFLICT (tournament_id) DO NOTHING
			RETURNING version, updated_at`,
			snap.TournamentID, raw)
	} else {
		row = executor.QueryRowContext(ctx, `
			UPDATE brackets
			SET snapshot = $1, version = version + 1, updated_at = NOW()
			WHERE tournament_id = $2 AND version = $3
			RETURNING version, updated_at`,
			raw, snap.TournamentID, expectedVersion)
	}

	if err := row.Scan(&snap.Version, &snap.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: tournament %d, expected version %d", ErrBracketVersionConflict, snap.TournamentID, expectedVersion)
		}
		if pqErr, ok := asPQError(err); ok && pqErr.Code == pqForeignKeyViolation {
			return ErrTournamentNotFound
		}
		return fmt.Errorf("failed to save bracket for tournament %d: %w", snap.TournamentID, err)
	}
	return nil
}

func (r *postgresBracketRepository) Delete(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM brackets WHERE tournament_id = $1`, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to delete bracket: %w", err)
	}
	return checkAffectedRows(result, ErrBracketNotFound)
}
