package players

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/courtmate/tennis-platform/internal/geo"
	"github.com/courtmate/tennis-platform/pkg/common"
	"github.com/courtmate/tennis-platform/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const playerColumns = `
	p.id, p.name, p.email, COALESCE(p.phone, ''), COALESCE(p.skill_level, ''),
	COALESCE(p.preferred_location, ''), p.latitude, p.longitude,
	COALESCE(p.availability, ''), COALESCE(p.bio, ''),
	COALESCE(p.preferred_court_type, ''), COALESCE(p.playing_style, ''),
	p.is_active, p.created_at,
	(SELECT COUNT(*) FROM bookings b
	  WHERE b.player_id = p.id AND b.booking_date >= CURRENT_DATE - 30) AS recent_bookings`

// Repository handles database operations for players
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new players repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanPlayer(row pgx.Row) (*Player, error) {
	p := &Player{}
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Phone,
		&p.SkillLevel,
		&p.PreferredLocation,
		&p.Latitude,
		&p.Longitude,
		&p.Availability,
		&p.Bio,
		&p.PreferredCourtType,
		&p.PlayingStyle,
		&p.IsActive,
		&p.CreatedAt,
		&p.RecentBookings,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// candidateClause builds the WHERE clause for ListCandidates.
func candidateClause(q CandidateQuery) (string, []interface{}) {
	conditions := []string{"p.is_active = TRUE", "p.id <> $1"}
	args := []interface{}{q.ExcludeID}

	if len(q.SkillLevels) > 0 {
		levels := make([]string, len(q.SkillLevels))
		for i, l := range q.SkillLevels {
			levels[i] = string(l)
		}
		args = append(args, levels)
		conditions = append(conditions, fmt.Sprintf("LOWER(p.skill_level) = ANY($%d)", len(args)))
	}
	if loc := strings.TrimSpace(q.Location); loc != "" {
		args = append(args, database.ContainsPattern(loc))
		conditions = append(conditions, fmt.Sprintf("p.preferred_location ILIKE $%d", len(args)))
	}
	if q.Availability != "" {
		args = append(args, string(q.Availability))
		conditions = append(conditions, fmt.Sprintf("(p.availability = $%d OR p.availability = 'flexible')", len(args)))
	}
	return strings.Join(conditions, " AND "), args
}

// GetByID retrieves a player with their 30-day booking count.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players p WHERE p.id = $1`

	p, err := scanPlayer(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("player not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return p, nil
}

// ListCandidates returns active players other than q.ExcludeID that pass the
// optional skill, location and availability filters.
func (r *Repository) ListCandidates(ctx context.Context, q CandidateQuery) ([]*Player, error) {
	where, args := candidateClause(q)
	query := `SELECT ` + playerColumns + ` FROM players p WHERE ` + where + ` ORDER BY p.created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate players: %w", err)
	}
	defer rows.Close()

	var candidates []*Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		candidates = append(candidates, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate players: %w", err)
	}

	return candidates, nil
}

// UpdateCoordinates persists a lazily geocoded position.
func (r *Repository) UpdateCoordinates(ctx context.Context, id uuid.UUID, c geo.Coordinates) error {
	query := `
		UPDATE players
		SET latitude = $1, longitude = $2, updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.db.Exec(ctx, query, c.Latitude, c.Longitude, id)
	if err != nil {
		return fmt.Errorf("failed to update player coordinates: %w", err)
	}
	if result.RowsAffected() == 0 {
		return common.NewNotFoundError("player not found", nil)
	}
	return nil
}
