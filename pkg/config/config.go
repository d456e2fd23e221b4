package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// DefaultDatabasePath is relative to the working directory.
const DefaultDatabasePath = "./school.db"

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Backups  BackupConfig
	Exports  ExportConfig
}

type DatabaseConfig struct {
	Path              string
	BusyTimeoutMillis int
	ListPageSize      int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BackupConfig controls where database copies go and how long they are kept.
type BackupConfig struct {
	Dir       string
	Retention time.Duration
	// Interval schedules automatic backups; zero disables them.
	Interval time.Duration
}

// ExportConfig tunes caching of rendered exports.
type ExportConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Path:              v.GetString("DB_PATH"),
		BusyTimeoutMillis: v.GetInt("DB_BUSY_TIMEOUT_MS"),
		ListPageSize:      v.GetInt("DB_LIST_PAGE_SIZE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Backups = BackupConfig{
		Dir:       v.GetString("BACKUP_DIR"),
		Retention: parseDuration(v.GetString("BACKUP_RETENTION"), 0),
		Interval:  parseDuration(v.GetString("BACKUP_INTERVAL"), 0),
	}

	cfg.Exports = ExportConfig{
		CacheEnabled: v.GetBool("ENABLE_EXPORT_CACHE"),
		CacheTTL:     parseDuration(v.GetString("EXPORT_CACHE_TTL"), 10*time.Minute),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_PATH", DefaultDatabasePath)
	v.SetDefault("DB_BUSY_TIMEOUT_MS", 5000)
	v.SetDefault("DB_LIST_PAGE_SIZE", 100)

	v.SetDefault("ENABLE_EXPORT_CACHE", false)
	v.SetDefault("EXPORT_CACHE_TTL", "10m")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BACKUP_DIR", "./backups")
	v.SetDefault("BACKUP_RETENTION", "")
	v.SetDefault("BACKUP_INTERVAL", "")
}

// isMissingFile covers viper returning a raw fs error for an explicit
// SetConfigFile path that does not exist.
func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory") ||
		strings.Contains(err.Error(), "cannot find the file")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
