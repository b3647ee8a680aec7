package sqldb

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/devgateway/dozer-model/internal/config"
	"github.com/devgateway/dozer-model/internal/logs"
)

// Open connects to the configured database. sqlite uses the pure-Go
// modernc driver; mysql expects a go-sql-driver DSN.
func Open(cfg config.DBConfig, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite", "":
		dialector = sqlite.Dialector{DriverName: "sqlite", DSN: cfg.DSN}
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}

	slow := cfg.SlowThreshold
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logs.NewGormLogger(log, glogger.Warn, slow),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpen)
	}
	if cfg.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	}

	log.Info("open db success",
		zap.String("driver", db.Dialector.Name()),
		zap.Int("max_open", cfg.MaxOpen),
		zap.Int("max_idle", cfg.MaxIdle),
	)
	return db, nil
}

// OpenSQLite opens a sqlite file with default pool settings.
func OpenSQLite(path string) (*gorm.DB, error) {
	return Open(config.DBConfig{Driver: "sqlite", DSN: path}, nil)
}
