package sqldb

import (
	"context"
	"embed"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/devgateway/dozer-model/internal/logs"
)

//go:embed migrations/sqlite/*.sql migrations/mysql/*.sql
var migrationsFS embed.FS

// RunMigrations applies the embedded migrations for db's dialect and
// returns the resulting schema version.
func RunMigrations(ctx context.Context, db *gorm.DB) (int64, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return 0, err
	}

	dialect, dir := "sqlite3", "migrations/sqlite"
	if db.Dialector.Name() == "mysql" {
		dialect, dir = "mysql", "migrations/mysql"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return 0, err
	}

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.UpContext(ctx, sqlDB, dir); err != nil {
		return 0, err
	}

	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return 0, err
	}
	logs.Info("migrations applied", zap.String("dialect", dialect), zap.Int64("version", version))
	return version, nil
}
