package postgres

import (
	"context"
	"database/sql"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/daybreakhq/daybreak/internal/profile"
	"github.com/daybreakhq/daybreak/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a PostgreSQL connection using the DSN in the given profile.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	// Connection pool sized for a single-user personal assistant.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	var driver store.Driver = &DB{
		db:      db,
		profile: profile,
	}

	return driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Migrate creates the snapshot table if it does not exist.
func (d *DB) Migrate(ctx context.Context) error {
	stmt := `
		CREATE TABLE IF NOT EXISTS preference_snapshot (
			user_id TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			created_ts BIGINT NOT NULL DEFAULT extract(epoch from now()),
			updated_ts BIGINT NOT NULL DEFAULT extract(epoch from now())
		)`
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, "failed to create preference_snapshot table")
	}
	return nil
}
