package database

import (
	"fmt"

	"estate-backend/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open opens a GORM DB from DSN (Postgres or pooler URL).
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") when using connection poolers (e.g. PgBouncer).
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
}

// ActivePlotIndex is the partial unique index allowing one active possession per plot.
const ActivePlotIndex = "uq_possessions_active_plot_id"

// AutoMigrate creates the possession tables plus the read-only collaborator tables
// (Plots, Files, Users) when they do not exist yet.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.Possession{},
		&domain.PossessionCodeCounter{},
		&domain.Plot{},
		&domain.File{},
		&domain.User{},
	); err != nil {
		return err
	}
	// Partial indexes are not expressible through struct tags. Both Postgres and SQLite accept this form.
	stmt := fmt.Sprintf(
		`CREATE UNIQUE INDEX IF NOT EXISTS %s ON "Possessions" (plot_id) WHERE is_deleted = false AND status NOT IN ('%s', '%s')`,
		ActivePlotIndex, domain.StatusCancelled, domain.StatusHandedOver,
	)
	return db.Exec(stmt).Error
}
