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

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Library   LibraryConfig
	Dashboard DashboardConfig
	QR        QRConfig
	Exports   ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// LibraryConfig carries school-facing settings stamped onto receipts.
type LibraryConfig struct {
	SchoolName          string
	BranchID            string
	DefaultOfficerTitle string
	DefaultLoanDays     int
}

// DashboardConfig governs summary caching.
type DashboardConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// QRConfig controls book/receipt QR generation.
type QRConfig struct {
	StorageDir      string
	PublicBaseURL   string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	Workers         int
}

// ExportsConfig controls spreadsheet/PDF export storage.
type ExportsConfig struct {
	StorageDir string
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 8*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Library = LibraryConfig{
		SchoolName:          v.GetString("LIBRARY_SCHOOL_NAME"),
		BranchID:            v.GetString("LIBRARY_BRANCH_ID"),
		DefaultOfficerTitle: v.GetString("LIBRARY_DEFAULT_OFFICER_TITLE"),
		DefaultLoanDays:     v.GetInt("LIBRARY_DEFAULT_LOAN_DAYS"),
	}

	cfg.Dashboard = DashboardConfig{
		CacheEnabled: v.GetBool("DASHBOARD_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 2*time.Minute),
	}

	cfg.QR = QRConfig{
		StorageDir:      v.GetString("QR_STORAGE_DIR"),
		PublicBaseURL:   v.GetString("QR_PUBLIC_BASE_URL"),
		SignedURLSecret: v.GetString("QR_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("QR_SIGNED_URL_TTL"), 30*24*time.Hour),
		Workers:         v.GetInt("QR_WORKERS"),
	}

	cfg.Exports = ExportsConfig{
		StorageDir: v.GetString("EXPORTS_STORAGE_DIR"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "perpus")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev-secret")
	v.SetDefault("JWT_EXPIRATION", "8h")
	v.SetDefault("JWT_ISSUER", "perpus-api")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("LIBRARY_SCHOOL_NAME", "Sekolah YP. Tunas Karya")
	v.SetDefault("LIBRARY_BRANCH_ID", "pusat")
	v.SetDefault("LIBRARY_DEFAULT_OFFICER_TITLE", "Petugas Perpustakaan")
	v.SetDefault("LIBRARY_DEFAULT_LOAN_DAYS", 7)

	v.SetDefault("DASHBOARD_CACHE_ENABLED", true)
	v.SetDefault("DASHBOARD_CACHE_TTL", "2m")

	v.SetDefault("QR_STORAGE_DIR", "./storage/qr")
	v.SetDefault("QR_PUBLIC_BASE_URL", "")
	v.SetDefault("QR_SIGNED_URL_TTL", "720h")
	v.SetDefault("QR_WORKERS", 2)

	v.SetDefault("EXPORTS_STORAGE_DIR", "./storage/exports")
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
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
