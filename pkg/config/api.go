package config

import "time"

// Database drivers understood by the API.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// APIConfig holds runtime configuration for the API service. APP_ENV has no
// default: an unset mode is not development, so the reseed stays closed.
type APIConfig struct {
	Environment        Environment   `env:"APP_ENV"`
	Addr               string        `env:"API_ADDR" envDefault:":4000"`
	DatabaseDriver     string        `env:"DATABASE_DRIVER" envDefault:"postgres"`
	DatabaseURL        string        `env:"DATABASE_URL" envDefault:"postgres://userseed:userseed@db:5432/userseed?sslmode=disable"`
	MigrationsDir      string        `env:"DB_MIGRATIONS_DIR"`
	JWTSecret          string        `env:"JWT_SECRET" envDefault:"supersecuresecret"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"24h"`
	BcryptCost         int           `env:"BCRYPT_COST" envDefault:"10"`
	SeedUsersFile      string        `env:"SEED_USERS_FILE"`
	SeedRequireAuth    bool          `env:"SEED_REQUIRE_AUTH" envDefault:"false"`
	RateLimitRedisAddr string        `env:"RATE_LIMIT_REDIS_ADDR"`
	RateLimitRedisPass string        `env:"RATE_LIMIT_REDIS_PASSWORD"`
	RateLimitRedisDB   int           `env:"RATE_LIMIT_REDIS_DB" envDefault:"0"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	OTelEndpoint       string        `env:"OTEL_ENDPOINT"`
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() (APIConfig, error) {
	var cfg APIConfig
	if err := ParseEnv(&cfg); err != nil {
		return APIConfig{}, err
	}
	return cfg, nil
}
