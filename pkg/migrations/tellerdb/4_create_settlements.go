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
		log.Println("creating settlements table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.SettlementDao{}); err != nil {
			return err
		}
		// Create indexes
		return mghelper.CreateModelIndexes(ctx, db, &dao.SettlementDao{}, "source_selector", "recipient")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping settlements table...")
		return mghelper.DropTables(ctx, db, &dao.SettlementDao{})
	})
}
