package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/admin"
	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close()

	hasher, err := auth.NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		log.Fatalf("hasher init error: %v", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	users := services.NewUserService(db, rm, hasher, logger)
	migrate := func(ctx context.Context) error { return rm.RunMigrations(ctx, db) }

	app := admin.NewApp(users, migrate, os.Stdin, os.Stdout)
	if err := app.Run(ctx, flagx.Positional(os.Args[1:])); err != nil {
		db.Close()
		log.Fatalf("authctl: %v", err)
	}

}
