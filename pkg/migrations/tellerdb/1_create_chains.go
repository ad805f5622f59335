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
		log.Println("creating chains table...")
		return mghelper.CreateSchema(ctx, db, &dao.ChainDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping chains table...")
		return mghelper.DropTables(ctx, db, &dao.ChainDao{})
	})
}
