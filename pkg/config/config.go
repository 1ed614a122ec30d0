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

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Admin    AdminConfig
	Gate     GateConfig
	Cache    CacheConfig
	Realtime RealtimeConfig
	Audit    AuditConfig
	Exports  ExportsConfig
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
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	Issuer            string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AdminConfig holds the bootstrap administrator identity. A signup with this
// email is provisioned as an approved admin instead of a pending student.
type AdminConfig struct {
	BootstrapEmail string
}

// GateConfig defines the navigation targets used by the access gate.
type GateConfig struct {
	SignInPath string
	HomePath   string
}

// CacheConfig tunes Redis-backed caching of hot read paths.
type CacheConfig struct {
	Enabled              bool
	ChapterListTTL       time.Duration
	AnnouncementPanelTTL time.Duration
}

// RealtimeConfig tunes the websocket change-event hub.
type RealtimeConfig struct {
	Enabled        bool
	SendBufferSize int
	WriteTimeout   time.Duration
}

// AuditConfig tunes the asynchronous audit log writer.
type AuditConfig struct {
	Workers    int
	BufferSize int
}

// ExportsConfig governs admin CSV/PDF export endpoints. Rendered documents
// are archived under Dir and retrievable with a signed token until DownloadTTL
// elapses.
type ExportsConfig struct {
	Enabled     bool
	MaxRows     int
	Dir         string
	DownloadTTL time.Duration
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
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Admin = AdminConfig{
		BootstrapEmail: strings.ToLower(strings.TrimSpace(v.GetString("ADMIN_BOOTSTRAP_EMAIL"))),
	}

	cfg.Gate = GateConfig{
		SignInPath: v.GetString("GATE_SIGNIN_PATH"),
		HomePath:   v.GetString("GATE_HOME_PATH"),
	}

	cfg.Cache = CacheConfig{
		Enabled:              v.GetBool("ENABLE_CACHE"),
		ChapterListTTL:       parseDuration(v.GetString("CACHE_CHAPTER_LIST_TTL"), 2*time.Minute),
		AnnouncementPanelTTL: parseDuration(v.GetString("CACHE_ANNOUNCEMENT_PANEL_TTL"), time.Minute),
	}

	cfg.Realtime = RealtimeConfig{
		Enabled:        v.GetBool("ENABLE_REALTIME"),
		SendBufferSize: v.GetInt("REALTIME_SEND_BUFFER"),
		WriteTimeout:   parseDuration(v.GetString("REALTIME_WRITE_TIMEOUT"), 10*time.Second),
	}

	cfg.Audit = AuditConfig{
		Workers:    v.GetInt("AUDIT_WORKERS"),
		BufferSize: v.GetInt("AUDIT_BUFFER_SIZE"),
	}

	cfg.Exports = ExportsConfig{
		Enabled:     v.GetBool("ENABLE_EXPORTS"),
		MaxRows:     v.GetInt("EXPORTS_MAX_ROWS"),
		Dir:         v.GetString("EXPORTS_DIR"),
		DownloadTTL: parseDuration(v.GetString("EXPORTS_DOWNLOAD_TTL"), 24*time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "coursehub")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "coursehub-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ADMIN_BOOTSTRAP_EMAIL", "admin@coursehub.edu")

	v.SetDefault("GATE_SIGNIN_PATH", "/auth")
	v.SetDefault("GATE_HOME_PATH", "/")

	v.SetDefault("ENABLE_CACHE", true)
	v.SetDefault("CACHE_CHAPTER_LIST_TTL", "2m")
	v.SetDefault("CACHE_ANNOUNCEMENT_PANEL_TTL", "1m")

	v.SetDefault("ENABLE_REALTIME", true)
	v.SetDefault("REALTIME_SEND_BUFFER", 256)
	v.SetDefault("REALTIME_WRITE_TIMEOUT", "10s")

	v.SetDefault("AUDIT_WORKERS", 1)
	v.SetDefault("AUDIT_BUFFER_SIZE", 64)

	v.SetDefault("ENABLE_EXPORTS", true)
	v.SetDefault("EXPORTS_MAX_ROWS", 5000)
	v.SetDefault("EXPORTS_DIR", "./exports")
	v.SetDefault("EXPORTS_DOWNLOAD_TTL", "24h")
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
