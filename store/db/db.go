// Package db provides the database driver factory.
package db

import (
	"github.com/pkg/errors"

	"github.com/rish2jain/Incident-Commander-sub000/internal/profile"
	"github.com/rish2jain/Incident-Commander-sub000/store"
	"github.com/rish2jain/Incident-Commander-sub000/store/db/postgres"
	"github.com/rish2jain/Incident-Commander-sub000/store/db/sqlite"
)

// NewDBDriver creates the database driver selected by the profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	switch profile.Driver {
	case "sqlite":
		return sqlite.NewDB(profile)
	case "postgres":
		return postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q", profile.Driver)
	}
}
