package tellerdb

import (
	"context"
	"log"

	"github.com/chainsafe/vault-teller/pkg/db/dao"
	mghelper "github.com/chainsafe/vault-teller/pkg/pgutil/migrations"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating teller_events table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.TellerEventDao{}); err != nil {
			return err
		}
		// Create indexes
		return mghelper.CreateModelIndexes(ctx, db, &dao.TellerEventDao{}, "event_type", "chain_selector")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping teller_events table...")
		return mghelper.DropTables(ctx, db, &dao.TellerEventDao{})
	})
}
