package bookings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gearshare-backend/pkg/db/models"
	"github.com/angelmondragon/gearshare-backend/pkg/enums"
	"github.com/angelmondragon/gearshare-backend/pkg/pagination"
)

// Repository persists bookings. Status only changes through UpdateStatus.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, booking *models.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	UpdateStatus(ctx context.Context, update StatusUpdate) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]models.Booking, string, error)
	FindExpiredPending(ctx context.Context, today time.Time, limit int) ([]models.Booking, error)
}

// StatusUpdate is a compare-and-swap: it applies only while the row still has From.
type StatusUpdate struct {
	ID              uuid.UUID
	From            enums.BookingStatus
	To              enums.BookingStatus
	At              time.Time
	CommissionCents *int64
	RentalStartedAt *time.Time
	CompletedAt     *time.Time
}

type ListFilter struct {
	AccountID uuid.UUID
	Role      *enums.ActorRole
	Status    *enums.BookingStatus
	Limit     int
	Cursor    string
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a booking repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

// UpdateStatus reports false when the row no longer has the expected status,
// meaning another command won the race.
func (r *repository) UpdateStatus(ctx context.Context, update StatusUpdate) (bool, error) {
	values := map[string]any{
		"status":     update.To,
		"updated_at": update.At,
	}
	if update.CommissionCents != nil {
		values["commission_cents"] = *update.CommissionCents
	}
	if update.RentalStartedAt != nil {
		values["rental_started_at"] = *update.RentalStartedAt
	}
	if update.CompletedAt != nil {
		values["completed_at"] = *update.CompletedAt
	}

	result := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND status = ?", update.ID, update.From).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Booking, string, error) {
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return nil, "", err
	}

	query := r.db.WithContext(ctx).Model(&models.Booking{})
	switch {
	case filter.Role != nil && *filter.Role == enums.ActorRoleOwner:
		query = query.Where("owner_id = ?", filter.AccountID)
	case filter.Role != nil && *filter.Role == enums.ActorRoleRenter:
		query = query.Where("renter_id = ?", filter.AccountID)
	default:
		query = query.Where("(owner_id = ? OR renter_id = ?)", filter.AccountID, filter.AccountID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if cursor != nil {
		query = query.Where("((created_at < ?) OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Booking
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(filter.Limit)).
		Find(&rows).Error; err != nil {
		return nil, "", err
	}

	page, next := pagination.Trim(rows, filter.Limit, func(b models.Booking) pagination.Cursor {
		return pagination.Cursor{CreatedAt: b.CreatedAt, ID: b.ID}
	})
	return page, next, nil
}

// FindExpiredPending returns pending bookings whose start date lies before today.
func (r *repository) FindExpiredPending(ctx context.Context, today time.Time, limit int) ([]models.Booking, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Booking
	if err := r.db.WithContext(ctx).
		Where("status = ? AND start_date < ?", enums.BookingStatusPending, today).
		Order("start_date ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
