package db

import (
	"github.com/pkg/errors"

	"github.com/daybreakhq/daybreak/internal/profile"
	"github.com/daybreakhq/daybreak/store"
	"github.com/daybreakhq/daybreak/store/db/postgres"
	"github.com/daybreakhq/daybreak/store/db/sqlite"
)

// This project supports only PostgreSQL and SQLite databases.
//
// SQLite: default driver; a single local file is all the fallback
// snapshot layer needs.
// PostgreSQL: production option for shared deployments.

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'postgres' and 'sqlite' are supported")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
