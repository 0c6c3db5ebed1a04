package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config stores service settings.
type Config struct {
	Port             int
	OperationTimeout time.Duration
	DB               DB
	Delivery         Delivery
	Outbox           Outbox
	Kafka            Kafka
	Storage          Storage
	SMTP             SMTP
	Firebase         Firebase
	RateLimit        RateLimit
}

// DB stores Postgres connection settings.
type DB struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// DSN returns a pgx connection string.
func (d DB) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Pass),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Delivery stores state machine rules.
type Delivery struct {
	MaxGPSAccuracy     float64
	EscalationSeverity string
}

// Outbox stores notification dispatch settings.
type Outbox struct {
	Schedule    string
	BatchSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Kafka stores broker settings.
type Kafka struct {
	Brokers       []string
	DispatchTopic string
	EventsTopic   string
	GroupID       string
}

// Enabled reports whether any broker is configured.
func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

// Storage stores photo storage settings.
type Storage struct {
	Backend       string
	Dir           string
	PublicBaseURL string
	Bucket        string
	Region        string
	Endpoint      string
	JPEGQuality   int
	MaxUploadSize int64
}

// SMTP stores mail settings. Empty Host disables e-mail.
type SMTP struct {
	Host    string
	Port    int
	User    string
	Pass    string
	From    string
	AdminTo string
}

// Firebase stores push settings. Empty CredentialsFile disables push.
type Firebase struct {
	CredentialsFile string
	ProjectID       string
}

// RateLimit stores per-client limiter settings.
type RateLimit struct {
	Enabled    bool
	Rate       float64
	Burst      int
	TTL        time.Duration
	MaxBuckets int
}

// Load reads configuration in order: .env (if present) → environment → flags.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := &Config{
		Port:             DefaultPort(),
		OperationTimeout: DefaultOperationTimeout(),
		DB:               DefaultDB(),
		Delivery:         DefaultDelivery(),
		Outbox:           DefaultOutbox(),
		Kafka:            DefaultKafka(),
		Storage:          DefaultStorage(),
		SMTP:             DefaultSMTP(),
		RateLimit:        DefaultRateLimit(),
	}

	if err := fromEnv(cfg); err != nil {
		return nil, err
	}

	pflag.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	pflag.StringVar(&cfg.Outbox.Schedule, "outbox-schedule", cfg.Outbox.Schedule, "cron spec for outbox dispatch")
	pflag.StringVar(&cfg.Storage.Backend, "storage", cfg.Storage.Backend, "photo storage backend (disk|s3)")
	if err := pflag.CommandLine.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv(cfg *Config) error {
	var err error
	if cfg.Port, err = envInt("PORT", cfg.Port); err != nil {
		return err
	}
	if cfg.OperationTimeout, err = envDuration("OPERATION_TIMEOUT", cfg.OperationTimeout); err != nil {
		return err
	}

	cfg.DB.Host = envString("POSTGRES_HOST", cfg.DB.Host)
	cfg.DB.Port = envString("POSTGRES_PORT", cfg.DB.Port)
	cfg.DB.User = envString("POSTGRES_USER", cfg.DB.User)
	cfg.DB.Pass = envString("POSTGRES_PASSWORD", cfg.DB.Pass)
	cfg.DB.Name = envString("POSTGRES_DB", cfg.DB.Name)
	if _, err := strconv.Atoi(cfg.DB.Port); err != nil {
		return fmt.Errorf("invalid POSTGRES_PORT %q: %w", cfg.DB.Port, err)
	}

	if cfg.Delivery.MaxGPSAccuracy, err = envFloat("DELIVERY_MAX_GPS_ACCURACY", cfg.Delivery.MaxGPSAccuracy); err != nil {
		return err
	}
	cfg.Delivery.EscalationSeverity = envString("DELIVERY_ESCALATION_SEVERITY", cfg.Delivery.EscalationSeverity)

	cfg.Outbox.Schedule = envString("OUTBOX_SCHEDULE", cfg.Outbox.Schedule)
	if cfg.Outbox.BatchSize, err = envInt("OUTBOX_BATCH_SIZE", cfg.Outbox.BatchSize); err != nil {
		return err
	}
	if cfg.Outbox.MaxAttempts, err = envInt("OUTBOX_MAX_ATTEMPTS", cfg.Outbox.MaxAttempts); err != nil {
		return err
	}
	if cfg.Outbox.BaseBackoff, err = envDuration("OUTBOX_BASE_BACKOFF", cfg.Outbox.BaseBackoff); err != nil {
		return err
	}
	if cfg.Outbox.MaxBackoff, err = envDuration("OUTBOX_MAX_BACKOFF", cfg.Outbox.MaxBackoff); err != nil {
		return err
	}

	cfg.Kafka.Brokers = envList("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.DispatchTopic = envString("KAFKA_DISPATCH_TOPIC", cfg.Kafka.DispatchTopic)
	cfg.Kafka.EventsTopic = envString("KAFKA_EVENTS_TOPIC", cfg.Kafka.EventsTopic)
	cfg.Kafka.GroupID = envString("KAFKA_GROUP_ID", cfg.Kafka.GroupID)

	cfg.Storage.Backend = envString("STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.Dir = envString("STORAGE_DIR", cfg.Storage.Dir)
	cfg.Storage.PublicBaseURL = envString("STORAGE_PUBLIC_BASE_URL", cfg.Storage.PublicBaseURL)
	cfg.Storage.Bucket = envString("S3_BUCKET", cfg.Storage.Bucket)
	cfg.Storage.Region = envString("S3_REGION", cfg.Storage.Region)
	cfg.Storage.Endpoint = envString("S3_ENDPOINT", cfg.Storage.Endpoint)
	if cfg.Storage.JPEGQuality, err = envInt("PHOTO_JPEG_QUALITY", cfg.Storage.JPEGQuality); err != nil {
		return err
	}
	maxUpload, err := envInt("PHOTO_MAX_UPLOAD_BYTES", int(cfg.Storage.MaxUploadSize))
	if err != nil {
		return err
	}
	cfg.Storage.MaxUploadSize = int64(maxUpload)

	cfg.SMTP.Host = envString("SMTP_HOST", cfg.SMTP.Host)
	if cfg.SMTP.Port, err = envInt("SMTP_PORT", cfg.SMTP.Port); err != nil {
		return err
	}
	cfg.SMTP.User = envString("SMTP_USER", cfg.SMTP.User)
	cfg.SMTP.Pass = envString("SMTP_PASSWORD", cfg.SMTP.Pass)
	cfg.SMTP.From = envString("SMTP_FROM", cfg.SMTP.From)
	cfg.SMTP.AdminTo = envString("ADMIN_EMAIL", cfg.SMTP.AdminTo)

	cfg.Firebase.CredentialsFile = envString("FIREBASE_CREDENTIALS_FILE", cfg.Firebase.CredentialsFile)
	cfg.Firebase.ProjectID = envString("FIREBASE_PROJECT_ID", cfg.Firebase.ProjectID)

	if cfg.RateLimit.Enabled, err = envBool("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled); err != nil {
		return err
	}
	if cfg.RateLimit.Rate, err = envFloat("RATE_LIMIT_RATE", cfg.RateLimit.Rate); err != nil {
		return err
	}
	if cfg.RateLimit.Burst, err = envInt("RATE_LIMIT_BURST", cfg.RateLimit.Burst); err != nil {
		return err
	}
	if cfg.RateLimit.TTL, err = envDuration("RATE_LIMIT_TTL", cfg.RateLimit.TTL); err != nil {
		return err
	}
	if cfg.RateLimit.MaxBuckets, err = envInt("RATE_LIMIT_MAX_BUCKETS", cfg.RateLimit.MaxBuckets); err != nil {
		return err
	}
	return nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.OperationTimeout <= 0 {
		return fmt.Errorf("invalid operation timeout: %s", c.OperationTimeout)
	}
	if c.Delivery.MaxGPSAccuracy <= 0 {
		return fmt.Errorf("invalid gps accuracy threshold: %v", c.Delivery.MaxGPSAccuracy)
	}
	switch c.Delivery.EscalationSeverity {
	case "low", "medium", "high", "critical":
	default:
		return fmt.Errorf("invalid escalation severity: %q", c.Delivery.EscalationSeverity)
	}
	switch c.Storage.Backend {
	case "disk":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("s3 storage requires S3_BUCKET")
		}
	default:
		return fmt.Errorf("invalid storage backend: %q", c.Storage.Backend)
	}
	if c.Storage.JPEGQuality < 1 || c.Storage.JPEGQuality > 100 {
		return fmt.Errorf("invalid jpeg quality: %d", c.Storage.JPEGQuality)
	}
	if c.Outbox.MaxAttempts <= 0 || c.Outbox.BatchSize <= 0 {
		return fmt.Errorf("invalid outbox settings: attempts=%d batch=%d", c.Outbox.MaxAttempts, c.Outbox.BatchSize)
	}
	return nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func envList(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
