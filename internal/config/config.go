package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Code allocator drivers.
const (
	AllocatorDatabase = "database"
	AllocatorRedis    = "redis"
)

// Document store drivers.
const (
	DocumentsSupabase = "supabase"
	DocumentsS3       = "s3"
	DocumentsMemory   = "memory"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	LogLevel            string
	SessionSecret       string
	DatabaseURL         string
	RedisURL            string
	AutoMigrate         bool
	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
	HealthAdminKey      string

	PossessionCodePrefix   string
	CodeAllocator          string // "database" or "redis"
	CodeAllocationAttempts int
	OverdueDaysDefault     int
	EnforceHandoverGate    bool

	DocumentStore     string // "supabase", "s3" or "memory"; empty disables attachments
	DocumentBucket    string
	SupabaseURL       string
	SupabaseSecretKey string // must be service_role key, not anon key
	S3Bucket          string
	S3Region          string
	S3Endpoint        string // optional, for MinIO/LocalStack
	S3PathStyle       bool
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8888")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("POSSESSION_CODE_PREFIX", "POS")
	v.SetDefault("CODE_ALLOCATOR", AllocatorDatabase)
	v.SetDefault("CODE_ALLOCATION_ATTEMPTS", 5)
	v.SetDefault("OVERDUE_DAYS_DEFAULT", 30)
	v.SetDefault("DOCUMENT_BUCKET", "possession-documents")
	v.SetDefault("S3_REGION", "us-east-1")

	cfg := &Config{
		Env:                 v.GetString("APP_ENV"),
		Port:                v.GetString("PORT"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		SessionSecret:       v.GetString("SESSION_SECRET"),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		RedisURL:            v.GetString("REDIS_URL"),
		AutoMigrate:         v.GetBool("AUTO_MIGRATE"),
		FrontendURLEndsWith: v.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         v.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:   v.GetBool("ALLOW_CROSS_SITE_DEV"),
		HealthAdminKey:      v.GetString("HEALTH_ADMIN_KEY"),

		PossessionCodePrefix:   strings.ToUpper(strings.TrimSpace(v.GetString("POSSESSION_CODE_PREFIX"))),
		CodeAllocator:          strings.ToLower(strings.TrimSpace(v.GetString("CODE_ALLOCATOR"))),
		CodeAllocationAttempts: v.GetInt("CODE_ALLOCATION_ATTEMPTS"),
		OverdueDaysDefault:     v.GetInt("OVERDUE_DAYS_DEFAULT"),
		EnforceHandoverGate:    v.GetBool("ENFORCE_HANDOVER_GATE"),

		DocumentStore:     strings.ToLower(strings.TrimSpace(v.GetString("DOCUMENT_STORE"))),
		DocumentBucket:    v.GetString("DOCUMENT_BUCKET"),
		SupabaseURL:       strings.TrimRight(v.GetString("SUPABASE_URL"), "/"),
		SupabaseSecretKey: v.GetString("SUPABASE_SECRET_KEY"),
		S3Bucket:          v.GetString("S3_BUCKET"),
		S3Region:          v.GetString("S3_REGION"),
		S3Endpoint:        v.GetString("S3_ENDPOINT"),
		S3PathStyle:       v.GetBool("S3_PATH_STYLE"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CodeAllocator {
	case AllocatorDatabase:
	case AllocatorRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("config: CODE_ALLOCATOR=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("config: unknown CODE_ALLOCATOR %q", c.CodeAllocator)
	}
	if c.PossessionCodePrefix == "" {
		return fmt.Errorf("config: POSSESSION_CODE_PREFIX must not be empty")
	}
	if c.CodeAllocationAttempts < 1 {
		return fmt.Errorf("config: CODE_ALLOCATION_ATTEMPTS must be at least 1")
	}
	switch c.DocumentStore {
	case "", DocumentsMemory:
	case DocumentsSupabase:
		if c.SupabaseURL == "" || c.SupabaseSecretKey == "" {
			return fmt.Errorf("config: DOCUMENT_STORE=supabase requires SUPABASE_URL and SUPABASE_SECRET_KEY")
		}
	case DocumentsS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("config: DOCUMENT_STORE=s3 requires S3_BUCKET")
		}
	default:
		return fmt.Errorf("config: unknown DOCUMENT_STORE %q", c.DocumentStore)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// SetupLogging applies LOG_LEVEL globally; development gets console output.
func SetupLogging(c *Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if c.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
