package courts

import (
	"time"

	"github.com/courtmate/tennis-platform/internal/geo"
	pkggeo "github.com/courtmate/tennis-platform/pkg/geo"
	"github.com/google/uuid"
)

// Court types and surfaces
const (
	TypeIndoor  = "indoor"
	TypeOutdoor = "outdoor"

	SurfaceHard       = "hard"
	SurfaceClay       = "clay"
	SurfaceGrass      = "grass"
	SurfaceArtificial = "artificial"
)

const (
	defaultAdvanceBookingDays = 30
	openingHour               = 8
	closingHour               = 22
)

// Court is a bookable tennis court.
type Court struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Location           string    `json:"location"`
	Latitude           *float64  `json:"latitude,omitempty"`
	Longitude          *float64  `json:"longitude,omitempty"`
	CourtType          string    `json:"court_type"`
	Surface            string    `json:"surface"`
	HourlyRate         float64   `json:"hourly_rate"`
	HasParking         bool      `json:"has_parking"`
	HasChangingRooms   bool      `json:"has_changing_rooms"`
	HasLighting        bool      `json:"has_lighting"`
	HasEquipmentRental bool      `json:"has_equipment_rental"`
	AdvanceBookingDays int       `json:"advance_booking_days"`
	IsActive           bool      `json:"is_active"`
}

// Coordinates returns the court position, or nil when unknown.
func (c *Court) Coordinates() *geo.Coordinates {
	return geo.FromNullable(c.Latitude, c.Longitude)
}

// BookingWindowDays is how far ahead the court accepts bookings.
func (c *Court) BookingWindowDays() int {
	if c.AdvanceBookingDays <= 0 {
		return defaultAdvanceBookingDays
	}
	return c.AdvanceBookingDays
}

// BookingStatus is the lifecycle state of a concrete booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingRejected  BookingStatus = "rejected"
)

// Occupies reports whether a booking in this status blocks its slot.
func (s BookingStatus) Occupies() bool {
	return s == BookingPending || s == BookingConfirmed
}

// Booking is a confirmed or pending reservation of a court slot.
type Booking struct {
	ID          uuid.UUID     `json:"id"`
	CourtID     uuid.UUID     `json:"court_id"`
	PlayerID    uuid.UUID     `json:"player_id"`
	BookingDate time.Time     `json:"booking_date"`
	StartTime   TimeOfDay     `json:"start_time"`
	EndTime     TimeOfDay     `json:"end_time"`
	Status      BookingStatus `json:"status"`
	TotalCost   float64       `json:"total_cost"`
	Notes       string        `json:"notes,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Slot is a one-hour window on a court.
type Slot struct {
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
}

// SortMode orders court listings.
type SortMode string

const (
	SortRecommended SortMode = "recommended"
	SortPriceLow    SortMode = "price_low"
	SortPriceHigh   SortMode = "price_high"
	SortDistance    SortMode = "distance"
	SortName        SortMode = "name"
	SortLocation    SortMode = "location"
)

// SortOption describes a sort mode for clients.
type SortOption struct {
	Value SortMode `json:"value"`
	Label string   `json:"label"`
}

// Filters narrows the court pool. Zero values are ignored.
type Filters struct {
	Location      string     `form:"location" validate:"omitempty,max=100"`
	CourtType     string     `form:"court_type" validate:"omitempty,court_type"`
	Surface       string     `form:"surface" validate:"omitempty,surface"`
	MaxPrice      float64    `form:"max_price" validate:"omitempty,gt=0"`
	MaxDistanceKm float64    `form:"max_distance" validate:"omitempty,gt=0,lte=500"`
	Date          *time.Time `form:"-"`
	// Area is derived from MaxDistanceKm once the player's position is known.
	Area *Area `form:"-"`
}

// Area is a latitude/longitude box used to prefilter courts in SQL.
type Area struct {
	MinLat, MinLng, MaxLat, MaxLng float64
}

func areaAround(c geo.Coordinates, radiusKm float64) *Area {
	minLat, minLng, maxLat, maxLng := pkggeo.BoundingBox(c.Latitude, c.Longitude, radiusKm)
	return &Area{MinLat: minLat, MinLng: minLng, MaxLat: maxLat, MaxLng: maxLng}
}

// ScoreBreakdown is the per-component recommendation score.
type ScoreBreakdown struct {
	Preference   int      `json:"preference"`
	Distance     int      `json:"distance"`
	Availability int      `json:"availability"`
	Value        int      `json:"value"`
	Amenities    int      `json:"amenities"`
	Total        int      `json:"total"`
	DistanceKm   *float64 `json:"distance_km"`
}

// Recommendation is a scored court.
type Recommendation struct {
	Court          *Court         `json:"court"`
	Score          int            `json:"score"`
	DistanceKm     *float64       `json:"distance_km"`
	AvailableSlots *int           `json:"available_slots,omitempty"`
	Breakdown      ScoreBreakdown `json:"breakdown"`
	Explanation    []string       `json:"explanation"`
}

// CourtActivity is a court with its recent booking count.
type CourtActivity struct {
	Court    Court
	Bookings int
}

// TrendingLocation is an area ranked by recent booking activity.
type TrendingLocation struct {
	Location   string           `json:"location"`
	AreaCell   string           `json:"area_cell,omitempty"`
	Center     *geo.Coordinates `json:"center,omitempty"`
	Bookings   int              `json:"recent_bookings"`
	Courts     int              `json:"court_count"`
	TrendScore int              `json:"trend_score"`
}
