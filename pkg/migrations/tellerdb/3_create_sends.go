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
		log.Println("creating sends table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.SendDao{}); err != nil {
			return err
		}
		// Create indexes
		return mghelper.CreateModelIndexes(ctx, db, &dao.SendDao{}, "status", "destination_selector", "caller")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping sends table...")
		return mghelper.DropTables(ctx, db, &dao.SendDao{})
	})
}
