package payment

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// DriverRepository resolves driver profiles to their user accounts.
type DriverRepository struct {
	db *sqlx.DB
}

func NewDriverRepository(db *sqlx.DB) *DriverRepository {
	return &DriverRepository{db: db}
}

// UserIDForDriver returns the user that owns driverID.
func (r *DriverRepository) UserIDForDriver(ctx context.Context, driverID uuid.UUID) (uuid.UUID, error) {
	var userID uuid.UUID
	err := r.db.GetContext(ctx, &userID, `SELECT user_id FROM drivers WHERE id = $1`, driverID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, ErrDriverNotFound
	}
	return userID, err
}
