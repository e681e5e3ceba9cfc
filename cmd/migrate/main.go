package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/lanecalc/pkg/config"
	"github.com/angelmondragon/lanecalc/pkg/db"
	"github.com/angelmondragon/lanecalc/pkg/logger"
	"github.com/angelmondragon/lanecalc/pkg/migrate"
)

// gooseCommands run straight through migrate.Run.
var gooseCommands = map[string]bool{"up": true, "down": true, "status": true}

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|current|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	name := flag.String("name", "", "migration name (for -cmd=create)")
	version := flag.String("version", "", "target version YYYYMMDDHHMMSS (for -cmd=version)")
	flag.Parse()

	// Offline commands need neither config nor a database.
	switch *cmd {
	case "create":
		path, err := migrate.CreateSQLMigration(*dir, *name)
		exitOn("create migration", err)
		fmt.Println("created migration:", path)
		return
	case "validate":
		exitOn("validate migrations", migrate.ValidateDir(*dir))
		fmt.Println("migrations valid")
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	exitOn("load config", err)

	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"lane_id": cfg.App.LaneID,
		"cmd":     *cmd,
		"dir":     *dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	// Goose migrations are written for Postgres; a SQLite lane database is
	// created from the models instead.
	if cfg.FeatureFlags.UseSQLite {
		if *cmd != "up" {
			exitOn("sqlite lane", fmt.Errorf("only -cmd=up is supported, got %q", *cmd))
		}
		requireResource(ctx, logg, "sqlite schema", migrate.AutoMigrateModels(dbClient.DB()))
		logg.Info(ctx, "sqlite lane schema migrated")
		return
	}

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	switch {
	case gooseCommands[*cmd]:
		exitOn("goose "+*cmd, migrate.Run(ctx, sqlDB, *dir, *cmd))
	case *cmd == "current":
		v, err := migrate.CurrentVersion(sqlDB)
		exitOn("current version", err)
		fmt.Println(v)
	case *cmd == "version":
		exitOn("migrate to version", migrate.MigrateToVersion(ctx, sqlDB, *dir, *version))
	default:
		exitOn("parse flags", fmt.Errorf("unknown -cmd value %q", *cmd))
	}
	logg.Info(ctx, "migrate finished")
}

func exitOn(step string, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
