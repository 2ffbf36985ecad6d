package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers accepted in DB_DRIVER.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	AppEnv            string        `mapstructure:"APP_ENV"`
	ServerPort        string        `mapstructure:"SERVER_PORT"`
	DBDriver          string        `mapstructure:"DB_DRIVER"`
	MySQLDSN          string        `mapstructure:"MYSQL_DSN"`
	SQLitePath        string        `mapstructure:"SQLITE_PATH"`
	MongoURI          string        `mapstructure:"MONGO_URI"`
	MongoDatabase     string        `mapstructure:"MONGO_DATABASE"`
	RedisAddr         string        `mapstructure:"REDIS_ADDR"`
	RedisDB           int           `mapstructure:"REDIS_DB"`
	RedisPass         string        `mapstructure:"REDIS_PASSWORD"`
	JWTSecret         string        `mapstructure:"JWT_SECRET"`
	AccessTokenTTL    time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL   time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	AnalyticsCacheTTL time.Duration `mapstructure:"ANALYTICS_CACHE_TTL"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	LogFile           string        `mapstructure:"LOG_FILE"`
	SwaggerHost       string        `mapstructure:"SWAGGER_HOST"`
	ResetDB           bool          `mapstructure:"RESET_DB"`
}

var defaults = map[string]any{
	"APP_ENV":             "production",
	"SERVER_PORT":         "8080",
	"DB_DRIVER":           DriverMySQL,
	"MYSQL_DSN":           "user:password@tcp(localhost:3306)/tasks?charset=utf8mb4&parseTime=True&loc=UTC",
	"SQLITE_PATH":         "tasks.db",
	"MONGO_URI":           "mongodb://localhost:27017",
	"MONGO_DATABASE":      "taskmanager",
	"REDIS_ADDR":          "localhost:6379",
	"REDIS_DB":            0,
	"REDIS_PASSWORD":      "",
	"JWT_SECRET":          "change-me",
	"ACCESS_TOKEN_TTL":    "15m",
	"REFRESH_TOKEN_TTL":   "168h",
	"REQUEST_TIMEOUT":     "10s",
	"ANALYTICS_CACHE_TTL": "30s",
	"LOG_LEVEL":           "info",
	"LOG_FILE":            "",
	"SWAGGER_HOST":        "",
	"RESET_DB":            false,
}

// Load builds Config from environment (and an optional .env file) with sensible defaults.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Debug reports whether internal error details may be exposed.
func (c *Config) Debug() bool {
	return c.AppEnv == "development"
}
