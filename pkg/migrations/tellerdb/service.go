// Package tellerdb holds all the migrations for the teller database
package tellerdb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the teller database
var Migrations = migrate.NewMigrations()
