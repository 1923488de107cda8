package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	LogLevel     string        `yaml:"log-level" env:"BINGO_LOG_LEVEL" env-default:"info"`
	HTTPPort     string        `yaml:"http-port" env:"BINGO_HTTP_PORT" env-default:"9090"`
	PublicURL    string        `yaml:"public-url" env:"BINGO_PUBLIC_URL" env-default:"http://localhost:9090"`
	Store        string        `yaml:"store" env:"BINGO_STORE" env-default:"redis"`
	SessionTTL   time.Duration `yaml:"session-ttl" env:"BINGO_SESSION_TTL" env-default:"24h"`
	IdentityPath string        `yaml:"identity-path" env:"BINGO_IDENTITY_PATH" env-default:"bingo-identity.db"`
	Redis        Redis         `yaml:"redis"`
	OTel         OTel          `yaml:"otel"`
}

type Redis struct {
	Host     string `yaml:"host" env:"BINGO_REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"BINGO_REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"BINGO_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"BINGO_REDIS_DB" env-default:"0"`
}

type OTel struct {
	Endpoint string `yaml:"endpoint" env:"BINGO_OTEL_ENDPOINT"`
	Enabled  bool   `yaml:"enabled" env:"BINGO_OTEL_ENABLED" env-default:"false"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

// Load reads the file at path, or only the environment when path is empty.
// Environment variables override the file.
func Load(path string) (*Config, error) {
	config := &Config{}

	if path == "" {
		if err := cleanenv.ReadEnv(config); err != nil {
			return nil, fmt.Errorf("unable to read config from env: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (that *Config) validate() error {
	switch that.Store {
	case StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("unknown store %q, want %s or %s", that.Store, StoreRedis, StoreMemory)
	}

	if that.HTTPPort == "" {
		return fmt.Errorf("http-port is required")
	}

	return nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
