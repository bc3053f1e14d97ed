package config

import (
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env         string        `yaml:"env" env:"ENV" env-default:"local"`
	HttpPort    string        `yaml:"http_port" env:"HTTP_PORT" env-default:"8080"`
	JWTSecret   string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	SessionTTL  time.Duration `yaml:"session_ttl" env:"SESSION_TTL" env-default:"72h"`
	DatabaseURL string        `yaml:"database_url" env:"DATABASE_URL" env-required:"true"`
	// SiteOrigin prefixes referral links.
	SiteOrigin string `yaml:"site_origin" env:"SITE_ORIGIN" env-default:"http://localhost:8080"`
	WebRoot    string `yaml:"web_root" env:"WEB_ROOT" env-default:"./web"`
	TimeZone   string `yaml:"time_zone" env:"TIME_ZONE" env-default:"UTC"`
	// FlowIdleTTL is how long an untouched user's flow state is kept.
	FlowIdleTTL time.Duration `yaml:"flow_idle_ttl" env:"FLOW_IDLE_TTL" env-default:"30m"`
	Cache       CacheConfig   `yaml:"cache" env-prefix:"CACHE_"`
	Log         LogConfig     `yaml:"log" env-prefix:"LOG_"`
}

type CacheConfig struct {
	Backend       string        `yaml:"backend" env:"BACKEND" env-default:"memory"`
	MaxAge        time.Duration `yaml:"max_age" env:"MAX_AGE" env-default:"5m"`
	RedisAddr     string        `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`
	RedisTTL      time.Duration `yaml:"redis_ttl" env:"REDIS_TTL" env-default:"1h"`
}

type LogConfig struct {
	Level      string `yaml:"level" env:"LEVEL" env-default:"info"`
	Path       string `yaml:"path" env:"PATH"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"MAX_SIZE_MB" env-default:"100"`
	MaxBackups int    `yaml:"max_backups" env:"MAX_BACKUPS" env-default:"3"`
	MaxAgeDays int    `yaml:"max_age_days" env:"MAX_AGE_DAYS" env-default:"7"`
	Compress   bool   `yaml:"compress" env:"COMPRESS"`
}

var ErrUnknownCacheBackend = errors.New("unknown cache backend")

// Location resolves TimeZone. Calendar days ("today") are computed in it.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}

// Load reads path when it is set, environment variables otherwise.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, errors.Wrap(err, "cleanenv read failed: ")
	}
	if cfg.Cache.Backend != "memory" && cfg.Cache.Backend != "redis" {
		return nil, errors.Wrap(ErrUnknownCacheBackend, cfg.Cache.Backend)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, errors.Wrap(err, "time.LoadLocation failed: ")
	}
	return cfg, nil
}

func MustLoad() *Config {
	// .env is optional
	_ = godotenv.Load()
	cfg, err := Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		panic(err)
	}
	return cfg
}
