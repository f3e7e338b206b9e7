package courts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/courtmate/tennis-platform/internal/geo"
	"github.com/courtmate/tennis-platform/pkg/common"
	"github.com/courtmate/tennis-platform/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const courtColumns = `
	c.id, c.name, c.location, c.latitude, c.longitude, c.court_type, c.surface,
	c.hourly_rate, c.has_parking, c.has_changing_rooms, c.has_lighting,
	c.has_equipment_rental, c.advance_booking_days, c.is_active`

// listOrder maps browse sort modes to ORDER BY clauses.
var listOrder = map[SortMode]string{
	SortName:      "c.name ASC",
	SortPriceLow:  "c.hourly_rate ASC, c.name ASC",
	SortPriceHigh: "c.hourly_rate DESC, c.name ASC",
	SortLocation:  "c.location ASC, c.name ASC",
}

// Repository handles database operations for courts and bookings
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new courts repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanCourt(row pgx.Row) (*Court, error) {
	c := &Court{}
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Location,
		&c.Latitude,
		&c.Longitude,
		&c.CourtType,
		&c.Surface,
		&c.HourlyRate,
		&c.HasParking,
		&c.HasChangingRooms,
		&c.HasLighting,
		&c.HasEquipmentRental,
		&c.AdvanceBookingDays,
		&c.IsActive,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// filterClause builds the WHERE clause for active courts matching f.
func filterClause(f Filters) (string, []interface{}) {
	conditions := []string{"c.is_active = TRUE"}
	var args []interface{}

	if loc := strings.TrimSpace(f.Location); loc != "" {
		args = append(args, database.ContainsPattern(loc))
		conditions = append(conditions, fmt.Sprintf("c.location ILIKE $%d", len(args)))
	}
	if f.CourtType != "" {
		args = append(args, strings.ToLower(f.CourtType))
		conditions = append(conditions, fmt.Sprintf("c.court_type = $%d", len(args)))
	}
	if f.Surface != "" {
		args = append(args, strings.ToLower(f.Surface))
		conditions = append(conditions, fmt.Sprintf("c.surface = $%d", len(args)))
	}
	if f.MaxPrice > 0 {
		args = append(args, f.MaxPrice)
		conditions = append(conditions, fmt.Sprintf("c.hourly_rate <= $%d", len(args)))
	}
	if a := f.Area; a != nil {
		args = append(args, a.MinLat, a.MaxLat, a.MinLng, a.MaxLng)
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"c.latitude BETWEEN $%d AND $%d AND c.longitude BETWEEN $%d AND $%d", n-3, n-2, n-1, n))
	}

	return strings.Join(conditions, " AND "), args
}

func (r *Repository) queryCourts(ctx context.Context, query string, args ...interface{}) ([]*Court, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query courts: %w", err)
	}
	defer rows.Close()

	var courts []*Court
	for rows.Next() {
		c, err := scanCourt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan court: %w", err)
		}
		courts = append(courts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate courts: %w", err)
	}
	return courts, nil
}

// GetByID retrieves a court by ID, active or not.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Court, error) {
	query := `SELECT ` + courtColumns + ` FROM courts c WHERE c.id = $1`

	c, err := scanCourt(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("court not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get court: %w", err)
	}
	return c, nil
}

// ListActive returns every active court matching the filters.
func (r *Repository) ListActive(ctx context.Context, f Filters) ([]*Court, error) {
	where, args := filterClause(f)
	return r.queryCourts(ctx, `SELECT `+courtColumns+` FROM courts c WHERE `+where, args...)
}

// ListSorted returns active courts ordered in SQL, for browsing without
// scoring.
func (r *Repository) ListSorted(ctx context.Context, f Filters, sortBy SortMode, limit int) ([]*Court, error) {
	order, ok := listOrder[sortBy]
	if !ok {
		order = listOrder[SortName]
	}

	where, args := filterClause(f)
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT %s FROM courts c WHERE %s ORDER BY %s LIMIT $%d`,
		courtColumns, where, order, len(args))

	return r.queryCourts(ctx, query, args...)
}

// ListVenues returns active courts with known coordinates for meeting point
// search.
func (r *Repository) ListVenues(ctx context.Context) ([]geo.Venue, error) {
	courts, err := r.queryCourts(ctx, `SELECT `+courtColumns+` FROM courts c
		WHERE c.is_active = TRUE AND c.latitude IS NOT NULL AND c.longitude IS NOT NULL`)
	if err != nil {
		return nil, err
	}

	venues := make([]geo.Venue, 0, len(courts))
	for _, c := range courts {
		venues = append(venues, geo.Venue{
			ID:          c.ID,
			Name:        c.Name,
			Location:    c.Location,
			HourlyRate:  c.HourlyRate,
			Coordinates: *c.Coordinates(),
		})
	}
	return venues, nil
}

// AverageActiveRate returns the mean hourly rate across active courts, or 0
// when there are none.
func (r *Repository) AverageActiveRate(ctx context.Context) (float64, error) {
	var avg float64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(AVG(hourly_rate), 0)::float8 FROM courts WHERE is_active = TRUE`,
	).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("failed to compute average court rate: %w", err)
	}
	return avg, nil
}

// ActiveBookingsOn returns slot-occupying bookings on date, keyed by court.
// A nil courtID returns bookings for every court.
func (r *Repository) ActiveBookingsOn(ctx context.Context, date time.Time, courtID *uuid.UUID) (map[uuid.UUID][]Booking, error) {
	query := `
		SELECT id, court_id, player_id, booking_date, start_time, end_time,
		       status, total_cost, COALESCE(notes, ''), created_at
		FROM bookings
		WHERE booking_date = $1
		  AND status IN ('pending', 'confirmed')
		  AND ($2::uuid IS NULL OR court_id = $2)
		ORDER BY start_time
	`

	rows, err := r.db.Query(ctx, query, date, courtID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings: %w", err)
	}
	defer rows.Close()

	byCourt := make(map[uuid.UUID][]Booking)
	for rows.Next() {
		var b Booking
		err := rows.Scan(
			&b.ID,
			&b.CourtID,
			&b.PlayerID,
			&b.BookingDate,
			&b.StartTime,
			&b.EndTime,
			&b.Status,
			&b.TotalCost,
			&b.Notes,
			&b.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		byCourt[b.CourtID] = append(byCourt[b.CourtID], b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return byCourt, nil
}

// IsSlotFree reports whether no pending or confirmed booking overlaps the
// slot.
func (r *Repository) IsSlotFree(ctx context.Context, courtID uuid.UUID, date time.Time, start, end TimeOfDay) (bool, error) {
	var taken bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE court_id = $1 AND booking_date = $2
			  AND status IN ('pending', 'confirmed')
			  AND start_time < $4 AND end_time > $3
		)`, courtID, date, start, end,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check court availability: %w", err)
	}
	return !taken, nil
}

// RecentActivity returns booking counts since the given time for every
// active court.
func (r *Repository) RecentActivity(ctx context.Context, since time.Time) ([]CourtActivity, error) {
	query := `SELECT ` + courtColumns + `, COUNT(b.id)
		FROM courts c
		LEFT JOIN bookings b ON b.court_id = c.id AND b.created_at >= $1
		WHERE c.is_active = TRUE
		GROUP BY c.id
		ORDER BY COUNT(b.id) DESC, c.name ASC`

	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get court activity: %w", err)
	}
	defer rows.Close()

	var activity []CourtActivity
	for rows.Next() {
		var a CourtActivity
		c := &a.Court
		err := rows.Scan(
			&c.ID, &c.Name, &c.Location, &c.Latitude, &c.Longitude, &c.CourtType, &c.Surface,
			&c.HourlyRate, &c.HasParking, &c.HasChangingRooms, &c.HasLighting,
			&c.HasEquipmentRental, &c.AdvanceBookingDays, &c.IsActive,
			&a.Bookings,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan court activity: %w", err)
		}
		activity = append(activity, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate court activity: %w", err)
	}
	return activity, nil
}
