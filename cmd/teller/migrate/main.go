package main

import (
	"flag"
	"log"

	"github.com/chainsafe/vault-teller/pkg/config"
	"github.com/chainsafe/vault-teller/pkg/migrations/tellerdb"
	"github.com/chainsafe/vault-teller/pkg/pgutil"
	mghelper "github.com/chainsafe/vault-teller/pkg/pgutil/migrations"

	"github.com/uptrace/bun/migrate"
)

func main() {
	cfgPath := flag.String("config", "config.example.yaml", "Path to configuration file")
	flag.Usage = mghelper.Usage
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatalf("error connecting to database: %s", err.Error())
	}
	defer db.Close()

	log.Printf("Running migrations for teller database (%s)...\n", cfg.Database.Database)

	migrator := migrate.NewMigrator(db, tellerdb.Migrations)
	if err := mghelper.RunMigrations(migrator, flag.Args()...); err != nil {
		mghelper.Exitf(err.Error())
	}
}
