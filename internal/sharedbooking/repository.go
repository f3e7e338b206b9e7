package sharedbooking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/courtmate/tennis-platform/internal/courts"
	"github.com/courtmate/tennis-platform/pkg/common"
	"github.com/courtmate/tennis-platform/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sharedBookingColumns = `
	id, player1_id, player2_id, court_id, booking_date, start_time, end_time,
	status, alt_court_id, alt_date, alt_start_time, alt_end_time,
	COALESCE(alt_notes, ''), total_cost, player1_share, player2_share,
	COALESCE(initiator_notes, ''), COALESCE(partner_notes, ''),
	proposed_at, responded_at, confirmed_at, expires_at, final_booking_id, version`

// Repository handles database operations for shared bookings
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new shared booking repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanSharedBooking(row pgx.Row) (*SharedBooking, error) {
	sb := &SharedBooking{}
	var (
		altCourtID *uuid.UUID
		altDate    *time.Time
		altStart   *courts.TimeOfDay
		altEnd     *courts.TimeOfDay
		altNotes   string
	)
	err := row.Scan(
		&sb.ID,
		&sb.Player1ID,
		&sb.Player2ID,
		&sb.CourtID,
		&sb.BookingDate,
		&sb.StartTime,
		&sb.EndTime,
		&sb.Status,
		&altCourtID,
		&altDate,
		&altStart,
		&altEnd,
		&altNotes,
		&sb.TotalCost,
		&sb.Player1Share,
		&sb.Player2Share,
		&sb.InitiatorNotes,
		&sb.PartnerNotes,
		&sb.ProposedAt,
		&sb.RespondedAt,
		&sb.ConfirmedAt,
		&sb.ExpiresAt,
		&sb.FinalBookingID,
		&sb.Version,
	)
	if err != nil {
		return nil, err
	}

	if altCourtID != nil && altDate != nil && altStart != nil && altEnd != nil {
		sb.Alternative = &Alternative{
			CourtID:   *altCourtID,
			Date:      *altDate,
			StartTime: *altStart,
			EndTime:   *altEnd,
			Notes:     altNotes,
		}
	}
	return sb, nil
}

// alternativeArgs flattens the alternative slot into nullable columns.
func alternativeArgs(a *Alternative) (*uuid.UUID, *time.Time, *courts.TimeOfDay, *courts.TimeOfDay, *string) {
	if a == nil {
		return nil, nil, nil, nil, nil
	}
	return &a.CourtID, &a.Date, &a.StartTime, &a.EndTime, &a.Notes
}

func (r *Repository) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*SharedBooking, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shared bookings: %w", err)
	}
	defer rows.Close()

	var out []*SharedBooking
	for rows.Next() {
		sb, err := scanSharedBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shared booking: %w", err)
		}
		out = append(out, sb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shared bookings: %w", err)
	}
	return out, nil
}

// Create inserts a new proposal.
func (r *Repository) Create(ctx context.Context, sb *SharedBooking) error {
	query := `
		INSERT INTO shared_bookings (
			id, player1_id, player2_id, court_id, booking_date, start_time, end_time,
			status, total_cost, player1_share, player2_share, initiator_notes,
			proposed_at, expires_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.Exec(ctx, query,
		sb.ID,
		sb.Player1ID,
		sb.Player2ID,
		sb.CourtID,
		sb.BookingDate,
		sb.StartTime,
		sb.EndTime,
		sb.Status,
		sb.TotalCost,
		sb.Player1Share,
		sb.Player2Share,
		sb.InitiatorNotes,
		sb.ProposedAt,
		sb.ExpiresAt,
		sb.Version,
	)
	if database.IsUniqueViolation(err) {
		return ErrOpenNegotiation
	}
	if err != nil {
		return fmt.Errorf("failed to create shared booking: %w", err)
	}
	return nil
}

// GetByID retrieves a shared booking by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*SharedBooking, error) {
	query := `SELECT ` + sharedBookingColumns + ` FROM shared_bookings WHERE id = $1`

	sb, err := scanSharedBooking(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("shared booking not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shared booking: %w", err)
	}
	return sb, nil
}

// Update writes every mutable field guarded by the version read earlier.
// On success sb.Version is advanced.
func (r *Repository) Update(ctx context.Context, sb *SharedBooking) error {
	altCourt, altDate, altStart, altEnd, altNotes := alternativeArgs(sb.Alternative)

	query := `
		UPDATE shared_bookings SET
			court_id = $3, booking_date = $4, start_time = $5, end_time = $6,
			status = $7, alt_court_id = $8, alt_date = $9, alt_start_time = $10,
			alt_end_time = $11, alt_notes = $12, total_cost = $13,
			player1_share = $14, player2_share = $15, partner_notes = $16,
			responded_at = $17, version = version + 1
		WHERE id = $1 AND version = $2
	`

	tag, err := r.db.Exec(ctx, query,
		sb.ID, sb.Version,
		sb.CourtID, sb.BookingDate, sb.StartTime, sb.EndTime,
		sb.Status, altCourt, altDate, altStart,
		altEnd, altNotes, sb.TotalCost,
		sb.Player1Share, sb.Player2Share, sb.PartnerNotes,
		sb.RespondedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update shared booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	sb.Version++
	return nil
}

// HasPendingBetween reports whether the two players already negotiate, in
// either direction.
func (r *Repository) HasPendingBetween(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM shared_bookings
			WHERE ((player1_id = $1 AND player2_id = $2) OR (player1_id = $2 AND player2_id = $1))
			  AND status IN ('proposed', 'counter_proposed')
		)`, a, b,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pending proposals: %w", err)
	}
	return exists, nil
}

// Confirm turns an accepted negotiation into a concrete booking owned by
// player1. The row lock and version check reject concurrent transitions; the
// advisory lock serialises confirmations racing for the same court and day.
func (r *Repository) Confirm(ctx context.Context, sb *SharedBooking, at time.Time) (uuid.UUID, error) {
	bookingID := uuid.New()
	err := database.RetryableTransaction(ctx, r.db, func(tx pgx.Tx) error {
		return confirmIn(ctx, tx, sb, bookingID, at)
	})
	if err != nil {
		return uuid.Nil, err
	}
	sb.Version++
	return bookingID, nil
}

func confirmIn(ctx context.Context, tx pgx.Tx, sb *SharedBooking, bookingID uuid.UUID, at time.Time) error {
	var (
		version int
		status  Status
	)
	err := tx.QueryRow(ctx,
		`SELECT version, status FROM shared_bookings WHERE id = $1 FOR UPDATE`, sb.ID,
	).Scan(&version, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NewNotFoundError("shared booking not found", err)
	}
	if err != nil {
		return fmt.Errorf("failed to lock shared booking: %w", err)
	}
	if version != sb.Version || status != StatusAccepted {
		return ErrVersionConflict
	}

	slotKey := sb.CourtID.String() + ":" + sb.BookingDate.Format(dateLayout)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, slotKey); err != nil {
		return fmt.Errorf("failed to lock court slot: %w", err)
	}

	var taken bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE court_id = $1 AND booking_date = $2
			  AND status IN ('pending', 'confirmed')
			  AND start_time < $4 AND end_time > $3
		)`, sb.CourtID, sb.BookingDate, sb.StartTime, sb.EndTime,
	).Scan(&taken)
	if err != nil {
		return fmt.Errorf("failed to check court availability: %w", err)
	}
	if taken {
		return ErrSlotTaken
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO bookings (id, court_id, player_id, booking_date, start_time, end_time,
			status, total_cost, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		bookingID, sb.CourtID, sb.Player1ID, sb.BookingDate, sb.StartTime, sb.EndTime,
		courts.BookingPending, sb.TotalCost, sb.InitiatorNotes, at)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE shared_bookings
		SET status = $2, final_booking_id = $3, confirmed_at = $4, version = version + 1
		WHERE id = $1`,
		sb.ID, StatusConfirmed, bookingID, at)
	if err != nil {
		return fmt.Errorf("failed to confirm shared booking: %w", err)
	}
	return nil
}

// ExpireDue marks every pending proposal past its deadline as expired and
// returns the rows it changed.
func (r *Repository) ExpireDue(ctx context.Context, now time.Time) ([]*SharedBooking, error) {
	query := `
		UPDATE shared_bookings
		SET status = 'expired', version = version + 1
		WHERE status IN ('proposed', 'counter_proposed') AND expires_at <= $1
		RETURNING ` + sharedBookingColumns

	return r.queryBookings(ctx, query, now)
}

// ListForPlayer returns the player's negotiations, newest first.
func (r *Repository) ListForPlayer(ctx context.Context, playerID uuid.UUID, includeExpired bool) ([]*SharedBooking, error) {
	query := `SELECT ` + sharedBookingColumns + `
		FROM shared_bookings
		WHERE (player1_id = $1 OR player2_id = $1)
		  AND ($2 OR status <> 'expired')
		ORDER BY proposed_at DESC`

	return r.queryBookings(ctx, query, playerID, includeExpired)
}

// PendingForPlayer returns live proposals waiting on this player: fresh
// proposals sent to them, and counter-proposals made to their own proposals.
func (r *Repository) PendingForPlayer(ctx context.Context, playerID uuid.UUID, now time.Time) ([]*SharedBooking, error) {
	query := `SELECT ` + sharedBookingColumns + `
		FROM shared_bookings
		WHERE ((player2_id = $1 AND status = 'proposed')
		    OR (player1_id = $1 AND status = 'counter_proposed'))
		  AND expires_at > $2
		ORDER BY proposed_at DESC`

	return r.queryBookings(ctx, query, playerID, now)
}

// CountByStatus returns the number of shared bookings in each status.
func (r *Repository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM shared_bookings GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count shared bookings: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var (
			status Status
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan shared booking count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shared booking counts: %w", err)
	}
	return counts, nil
}
