package migrate

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/lanecalc/pkg/config"
	"github.com/angelmondragon/lanecalc/pkg/db"
	"github.com/angelmondragon/lanecalc/pkg/db/models"
	"github.com/angelmondragon/lanecalc/pkg/logger"
)

// Models lists every table the lane owns.
func Models() []any {
	return []any{
		&models.Product{},
		&models.ProductTaxComponent{},
		&models.ProductPriceTier{},
		&models.ProductGroupPrice{},
		&models.Promotion{},
		&models.TransactionRecord{},
		&models.RefundRecord{},
		&models.OutboxEvent{},
	}
}

// AutoMigrateModels creates the lane schema from the gorm models. SQLite lanes
// use this instead of the Postgres SQL migrations.
func AutoMigrateModels(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// MaybeRunDev executes migrations automatically when the app is running in dev mode and
// the feature flag is enabled. SQLite lanes always migrate on boot.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg.FeatureFlags.UseSQLite {
		logg.Info(logg.WithField(ctx, "dsn", cfg.DB.DSN), "migrating local lane database")
		return AutoMigrateModels(client.DB())
	}
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	meta := map[string]any{"env": cfg.App.Env, "dir": DefaultDir}
	ctx = logg.WithFields(ctx, meta)
	logg.Info(ctx, "running Goose migrations (dev auto-run)")

	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}
