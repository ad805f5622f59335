package migrations

import (
	"context"
	"strings"
	"testing"

	"github.com/chainsafe/vault-teller/pkg/pgutil"
	"github.com/uptrace/bun"
)

// relayReceipt is a throwaway model for exercising the schema helpers
// without depending on the real teller DAOs.
type relayReceipt struct {
	bun.BaseModel `bun:"table:relay_receipts"`
	ID            int64  `bun:",pk,autoincrement"`
	MessageID     string `bun:",notnull,type:varchar(66)"`
	Confirmations int    `bun:",nullzero"`
}

func TestCreateSchema(t *testing.T) {
	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := CreateSchema(ctx, db, &relayReceipt{}); err != nil {
		t.Fatalf("CreateSchema() failed: %v", err)
	}
	pgutil.AssertTableExists(t, db, "relay_receipts")

	// The created table must accept rows.
	receipt := &relayReceipt{MessageID: "0xabc", Confirmations: 3}
	if _, err := db.NewInsert().Model(receipt).Exec(ctx); err != nil {
		t.Fatalf("insert into created table failed: %v", err)
	}
	pgutil.AssertRowCount(t, db, "relay_receipts", 1)

	// Creating again must be a no-op, not an error, and must keep the data.
	if err := CreateSchema(ctx, db, &relayReceipt{}); err != nil {
		t.Errorf("CreateSchema() second call failed: %v", err)
	}
	pgutil.AssertRowCount(t, db, "relay_receipts", 1)
}

func TestDropTables(t *testing.T) {
	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := CreateSchema(ctx, db, &relayReceipt{}); err != nil {
		t.Fatalf("CreateSchema() failed: %v", err)
	}
	pgutil.AssertTableExists(t, db, "relay_receipts")

	if err := DropTables(ctx, db, &relayReceipt{}); err != nil {
		t.Fatalf("DropTables() failed: %v", err)
	}
	pgutil.AssertTableNotExists(t, db, "relay_receipts")

	// Dropping a missing table must be a no-op, not an error.
	if err := DropTables(ctx, db, &relayReceipt{}); err != nil {
		t.Errorf("DropTables() second call failed: %v", err)
	}
}

func TestCreateModelIndexes(t *testing.T) {
	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := CreateSchema(ctx, db, &relayReceipt{}); err != nil {
		t.Fatalf("CreateSchema() failed: %v", err)
	}

	if err := CreateModelIndexes(ctx, db, &relayReceipt{}, "message_id", "confirmations"); err != nil {
		t.Fatalf("CreateModelIndexes() failed: %v", err)
	}
	pgutil.AssertIndexExists(t, db, "idx_relay_receipts_message_id")
	pgutil.AssertIndexExists(t, db, "idx_relay_receipts_confirmations")

	// Re-creating an existing index must be a no-op, not an error.
	if err := CreateModelIndexes(ctx, db, &relayReceipt{}, "message_id"); err != nil {
		t.Errorf("CreateModelIndexes() second call failed: %v", err)
	}
}

func TestRunMigrations_UnknownCommand(t *testing.T) {
	err := RunMigrations(nil, "sideways")
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}
