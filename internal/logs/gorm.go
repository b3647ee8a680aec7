package logs

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	glogger "gorm.io/gorm/logger"
)

// GormLogger sends gorm's statements to zap. Failed statements log at
// error, statements slower than the threshold at warn, the rest at debug.
type GormLogger struct {
	log           *zap.Logger
	level         glogger.LogLevel
	slowThreshold time.Duration
}

func NewGormLogger(l *zap.Logger, level glogger.LogLevel, slowThreshold time.Duration) glogger.Interface {
	if l == nil {
		l = L()
	}
	return &GormLogger{log: l.Named("gorm"), level: level, slowThreshold: slowThreshold}
}

func (l *GormLogger) LogMode(level glogger.LogLevel) glogger.Interface {
	next := *l
	next.level = level
	return &next
}

func (l *GormLogger) Info(_ context.Context, msg string, data ...any) {
	if l.level >= glogger.Info {
		l.log.Info(msg, zap.Any("data", data))
	}
}

func (l *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	if l.level >= glogger.Warn {
		l.log.Warn(msg, zap.Any("data", data))
	}
}

func (l *GormLogger) Error(_ context.Context, msg string, data ...any) {
	if l.level >= glogger.Error {
		l.log.Error(msg, zap.Any("data", data))
	}
}

func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= glogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}

	switch {
	case err != nil && !errors.Is(err, glogger.ErrRecordNotFound):
		l.log.Error("query failed", append(fields, zap.Error(err))...)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		l.log.Warn("slow query", fields...)
	case l.level >= glogger.Info:
		l.log.Debug("query", fields...)
	}
}
