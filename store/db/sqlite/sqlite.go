package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/daybreakhq/daybreak/internal/profile"
	"github.com/daybreakhq/daybreak/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a database identified by the DSN in the given profile.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	// Connect to the database with some sane settings:
	// - No shared-cache: it's obsolete; WAL journal mode is a better solution.
	// - No foreign key constraints: the snapshot table is self-contained.
	// - Journal mode set to WAL: it's the recommended journal mode for most applications
	//   as it prevents locking issues.
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)", profile.DSN)
	sqliteDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	driver := DB{db: sqliteDB, profile: profile}

	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Migrate creates the snapshot table if it does not exist. The schema is a
// single self-contained table, so the migration is idempotent DDL.
func (d *DB) Migrate(ctx context.Context) error {
	stmt := `
		CREATE TABLE IF NOT EXISTS preference_snapshot (
			user_id TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			created_ts BIGINT NOT NULL DEFAULT (strftime('%s', 'now')),
			updated_ts BIGINT NOT NULL DEFAULT (strftime('%s', 'now'))
		)`
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, "failed to create preference_snapshot table")
	}
	return nil
}
