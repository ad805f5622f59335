package migrations

import (
	"context"
	"testing"

	"github.com/chainsafe/vault-teller/pkg/migrations/tellerdb"
	"github.com/chainsafe/vault-teller/pkg/pgutil"
	"github.com/uptrace/bun/migrate"
)

func TestTellerDBMigrations_Apply(t *testing.T) {
	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, tellerdb.Migrations)

	// Initialize migration system
	err := migrator.Init(ctx)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	// Run all migrations up
	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	if group.IsZero() {
		t.Error("Expected migrations to run, but none were applied")
	}

	// Verify all expected tables exist
	expectedTables := []string{
		"chains",
		"nonce_state",
		"sends",
		"settlements",
		"teller_events",
		"bun_migrations",
	}

	for _, table := range expectedTables {
		pgutil.AssertTableExists(t, db, table)
	}

	// Verify indexes exist for sends table
	pgutil.AssertIndexExists(t, db, "idx_sends_status")
	pgutil.AssertIndexExists(t, db, "idx_sends_destination_selector")
	pgutil.AssertIndexExists(t, db, "idx_sends_caller")

	// Verify indexes exist for settlements and events
	pgutil.AssertIndexExists(t, db, "idx_settlements_source_selector")
	pgutil.AssertIndexExists(t, db, "idx_settlements_recipient")
	pgutil.AssertIndexExists(t, db, "idx_teller_events_event_type")
	pgutil.AssertIndexExists(t, db, "idx_teller_events_chain_selector")
}

func TestMigrations_Idempotency(t *testing.T) {
	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, tellerdb.Migrations)

	// Initialize
	err := migrator.Init(ctx)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	// Run migrations first time
	_, err = migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("First Migrate() failed: %v", err)
	}

	// Run migrations second time - should not fail
	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("Second Migrate() failed: %v", err)
	}

	// Should return zero group (no new migrations)
	if !group.IsZero() {
		t.Error("Expected no new migrations on second run")
	}

	// Verify tables still exist
	pgutil.AssertTableExists(t, db, "chains")
	pgutil.AssertTableExists(t, db, "sends")
}

func TestMigrations_Rollback(t *testing.T) {
	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, tellerdb.Migrations)

	// Initialize
	err := migrator.Init(ctx)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	// Run migrations up
	_, err = migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	// Verify tables exist
	pgutil.AssertTableExists(t, db, "chains")
	pgutil.AssertTableExists(t, db, "settlements")

	// Rollback last migration group (all migrations run in one group by Migrate())
	group, err := migrator.Rollback(ctx)
	if err != nil {
		t.Fatalf("Rollback() failed: %v", err)
	}
	if group.IsZero() {
		t.Error("Expected rollback to process a migration")
	}

	// Verify all tables are dropped (entire migration group is rolled back)
	pgutil.AssertTableNotExists(t, db, "teller_events")
	pgutil.AssertTableNotExists(t, db, "settlements")
	pgutil.AssertTableNotExists(t, db, "sends")
	pgutil.AssertTableNotExists(t, db, "nonce_state")
	pgutil.AssertTableNotExists(t, db, "chains")
}
