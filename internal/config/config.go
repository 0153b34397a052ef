package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	AppEnv  string `env:"APP_ENV" envDefault:"dev"`
	APIAddr string `env:"API_ADDR" envDefault:":8080"`

	// Empty DSN selects the in-memory job store.
	PostgresDSN   string `env:"POSTGRES_DSN"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	// Empty address selects the in-memory result store.
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	ResultTTL     time.Duration `env:"RESULT_TTL" envDefault:"24h"`

	AIBaseURL   string        `env:"AI_BASE_URL" envDefault:"http://localhost:9000"`
	AITimeout   time.Duration `env:"AI_REQUEST_TIMEOUT" envDefault:"15s"`
	MaxAudioMiB int64         `env:"MAX_AUDIO_MIB" envDefault:"500"`

	Workers        int           `env:"WORKERS" envDefault:"4"`
	QueueSize      int           `env:"QUEUE_SIZE" envDefault:"1024"`
	ProcessTimeout time.Duration `env:"PROCESS_TIMEOUT" envDefault:"10m"`

	JobMaxAge       time.Duration `env:"JOB_MAX_AGE" envDefault:"24h"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"6h"`
}

// MaxAudioBytes converts the MiB-denominated ceiling to bytes.
func (c Config) MaxAudioBytes() int64 { return c.MaxAudioMiB * 1024 * 1024 }

func Load() Config {
	var c Config
	if err := env.Parse(&c); err != nil {
		log.Fatal(err)
	}
	return c
}
