package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/devgateway/dozer-model/internal/logs"
)

const envPrefix = "DOZER"

type Config struct {
	HTTP   HTTPConfig   `mapstructure:"http"`
	RPC    RPCConfig    `mapstructure:"rpc"`
	DB     DBConfig     `mapstructure:"db"`
	Log    logs.Config  `mapstructure:"log"`
	Models ModelsConfig `mapstructure:"models"`
	Walk   WalkConfig   `mapstructure:"walk"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type RPCConfig struct {
	Socket string `mapstructure:"socket"`
}

type DBConfig struct {
	Driver        string        `mapstructure:"driver"`
	DSN           string        `mapstructure:"dsn"`
	MaxOpen       int           `mapstructure:"max_open"`
	MaxIdle       int           `mapstructure:"max_idle"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
	BatchSize     int           `mapstructure:"batch_size"`
}

type ModelsConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type WalkConfig struct {
	MapKeys bool `mapstructure:"map_keys"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("rpc.socket", "/tmp/dozer.sock")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "dozer.db")
	v.SetDefault("db.max_open", 10)
	v.SetDefault("db.max_idle", 5)
	v.SetDefault("db.slow_threshold", "200ms")
	v.SetDefault("db.batch_size", 16)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 14)
	v.SetDefault("log.compress", false)
	v.SetDefault("log.dev", false)
	v.SetDefault("models.ttl", "30m")
	v.SetDefault("models.sweep_interval", "1m")
	v.SetDefault("walk.map_keys", false)
}

// Loader owns the viper instance behind a loaded Config.
type Loader struct {
	v *viper.Viper
}

// Load reads defaults, the optional file at path and DOZER_* environment
// overrides (DOZER_DB_DSN for db.dsn).
func Load(path string) (Config, *Loader, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, nil, fmt.Errorf("config file %s: %w", path, err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	l := &Loader{v: v}
	cfg, err := l.decode()
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, l, nil
}

func (l *Loader) decode() (Config, error) {
	var cfg Config
	err := l.v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc()))
	if err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	switch c.DB.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Errorf("db.driver must be sqlite or mysql, got %q", c.DB.Driver))
	}
	if strings.TrimSpace(c.DB.DSN) == "" {
		errs = append(errs, errors.New("db.dsn is required"))
	}
	if c.Models.TTL <= 0 {
		errs = append(errs, errors.New("models.ttl must be positive"))
	}
	if c.Models.SweepInterval <= 0 {
		errs = append(errs, errors.New("models.sweep_interval must be positive"))
	}
	return errors.Join(errs...)
}

// Watch calls fn with the re-decoded config whenever the config file
// changes. Invalid edits are logged and skipped. Without a file it is a no-op.
func (l *Loader) Watch(fn func(Config)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.decode()
		if err != nil {
			logs.Warn("config reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		logs.Info("config reloaded", zap.String("file", e.Name), zap.String("op", e.Op.String()))
		fn(cfg)
	})
	l.v.WatchConfig()
}
