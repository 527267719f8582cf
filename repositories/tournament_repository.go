package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/DioBrando1866/tekken-tournaments/models"
)

var (
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentNameConflict = errors.New("tournament name conflict for this creator")
	ErrTournamentInvalidData  = errors.New("tournament violates a table constraint")
)

type ListTournamentsFilter struct {
	CreatorID  *string
	Status     *models.TournamentStatus
	PublicOnly bool
	Limit      int
	Offset     int
}

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	Update(ctx context.Context, tournament *models.Tournament) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error
	UpdateChampion(ctx context.Context, exec SQLExecutor, id int, championPlayerID *string) error
	UpdateArchiveKey(ctx context.Context, id int, archiveKey *string) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `
	id, name, description, tournament_type, date, rounds_per_match,
	match_time_minutes, max_players, is_public, password_hash, color,
	creator_id, status, champion_player_id, bracket_archive_key, created_at`

func scanTournament(row rowScanner, t *models.Tournament) error {
	return row.Scan(
		&t.ID, &t.Name, &t.Description, &t.Type, &t.Date, &t.RoundsPerMatch,
		&t.MatchTimeMinutes, &t.MaxPlayers, &t.IsPublic, &t.PasswordHash, &t.Color,
		&t.CreatorID, &t.Status, &t.ChampionPlayerID, &t.ArchiveKey, &t.CreatedAt,
	)
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (
			name, description, tournament_type, date, rounds_per_match,
			match_time_minutes, max_players, is_public, password_hash, color,
			creator_id, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		t.Name, t.Description, t.Type, t.Date, t.RoundsPerMatch,
		t.MatchTimeMinutes, t.MaxPlayers, t.IsPublic, t.PasswordHash, t.Color,
		t.CreatorID, t.Status,
	).Scan(&t.ID, &t.CreatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1`

	t := &models.Tournament{}
	if err := scanTournament(r.db.QueryRowContext(ctx, query, id), t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.CreatorID != nil {
		query += fmt.Sprintf(" AND creator_id = $%d", argID)
		args = append(args, *filter.CreatorID)
		argID++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.PublicOnly {
		query += " AND is_public = TRUE"
	}

	query += " ORDER BY date DESC, created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		if scanErr := scanTournament(rows, &t); scanErr != nil {
			return nil, fmt.Errorf("failed to scan tournament: %w", scanErr)
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tournaments, nil
}

// Update writes the editable settings. Status, champion and archive key
// are changed by their own methods.
func (r *postgresTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	query := `
		UPDATE tournaments SET
			name = $1,
			description = $2,
			tournament_type = $3,
			date = $4,
			rounds_per_match = $5,
			match_time_minutes = $6,
			max_players = $7,
			is_public = $8,
			password_hash = $9,
			color = $10
		WHERE id = $11`

	result, err := r.db.ExecContext(ctx, query,
		t.Name, t.Description, t.Type, t.Date, t.RoundsPerMatch,
		t.MatchTimeMinutes, t.MaxPlayers, t.IsPublic, t.PasswordHash, t.Color,
		t.ID,
	)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	query := `UPDATE tournaments SET status = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// UpdateChampion sets or clears the bracket winner of the tournament.
func (r *postgresTournamentRepository) UpdateChampion(ctx context.Context, exec SQLExecutor, id int, championPlayerID *string) error {
	query := `UPDATE tournaments SET champion_player_id = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, championPlayerID, id)
	if err != nil {
		return fmt.Errorf("failed to update champion for tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateArchiveKey(ctx context.Context, id int, archiveKey *string) error {
	query := `UPDATE tournaments SET bracket_archive_key = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, archiveKey, id)
	if err != nil {
		return fmt.Errorf("failed to update bracket archive key: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	query := `DELETE FROM tournaments WHERE id = $1`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := asPQError(err); ok {
		switch pqErr.Code {
		case pqUniqueViolation:
			if pqErr.Constraint == "tournaments_creator_id_name_key" {
				return ErrTournamentNameConflict
			}
		case pqCheckViolation:
			return fmt.Errorf("%w: %s", ErrTournamentInvalidData, pqErr.Constraint)
		}
	}
	return err
}
