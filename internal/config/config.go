package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Segmenter SegmenterConfig `mapstructure:"segmenter"`
	Face      FaceConfig      `mapstructure:"face"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port           int      `mapstructure:"port"`
	InternalSecret string   `mapstructure:"internal_secret"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns host:port for go-redis and asynq.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	BucketLookup     string `mapstructure:"bucket_lookup"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
	ObjectExpiryDays int    `mapstructure:"object_expiry_days"`
}

// WorkerConfig controls the asynq server.
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	MetricsPort int `mapstructure:"metrics_port"`
}

// JobsConfig controls the job lifecycle.
type JobsConfig struct {
	Retention     time.Duration `mapstructure:"retention"`
	SweepSchedule string        `mapstructure:"sweep_schedule"`
	TaskTimeout   time.Duration `mapstructure:"task_timeout"`
	Queue         string        `mapstructure:"queue"`
}

// UploadConfig holds boundary validation for submitted photos.
type UploadConfig struct {
	MaxBytes          int64         `mapstructure:"max_bytes"`
	AllowedExtensions []string      `mapstructure:"allowed_extensions"`
	AllowedMIMETypes  []string      `mapstructure:"allowed_mime_types"`
	RateLimit         int           `mapstructure:"rate_limit"`
	RateWindow        time.Duration `mapstructure:"rate_window"`
	ClamdAddr         string        `mapstructure:"clamd_addr"`
}

// SegmenterConfig points at the rembg inference server.
type SegmenterConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// FaceConfig configures the pigo cascade detector. An empty CascadePath disables detection.
type FaceConfig struct {
	CascadePath      string  `mapstructure:"cascade_path"`
	MinSize          int     `mapstructure:"min_size"`
	QualityThreshold float64 `mapstructure:"quality_threshold"`
}

// CatalogConfig locates the document rule catalog. Built-in rules are used when Path is empty.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Upload.AllowedExtensions = normalizeList(cfg.Upload.AllowedExtensions)
	cfg.Upload.AllowedMIMETypes = normalizeList(cfg.Upload.AllowedMIMETypes)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "snapfixer")
	v.SetDefault("database.user", "snapfixer")
	v.SetDefault("database.password", "snapfixer")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "photos")
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("minio.object_expiry_days", 1)
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.metrics_port", 9091)
	v.SetDefault("jobs.retention", time.Hour)
	v.SetDefault("jobs.sweep_schedule", "@every 30m")
	v.SetDefault("jobs.task_timeout", 5*time.Minute)
	v.SetDefault("jobs.queue", "photos")
	v.SetDefault("upload.max_bytes", 30*1024*1024)
	v.SetDefault("upload.allowed_extensions", []string{".jpg", ".jpeg", ".png", ".webp", ".heic", ".heif", ".bmp"})
	v.SetDefault("upload.allowed_mime_types", []string{"image/jpeg", "image/png", "image/webp", "image/heic", "image/heif", "image/bmp"})
	v.SetDefault("upload.rate_limit", 20)
	v.SetDefault("upload.rate_window", 30*time.Minute)
	v.SetDefault("segmenter.endpoint", "http://localhost:7000")
	v.SetDefault("segmenter.model", "u2net_human")
	v.SetDefault("segmenter.timeout", 2*time.Minute)
	v.SetDefault("face.min_size", 20)
	v.SetDefault("face.quality_threshold", 5.0)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                   "API_PORT",
		"api.internal_secret":        "INTERNAL_API_SECRET",
		"api.allowed_origins":        "WS_ALLOWED_ORIGINS",
		"database.host":              "DATABASE_HOST",
		"database.port":              "DATABASE_PORT",
		"database.name":              "POSTGRES_DB",
		"database.user":              "POSTGRES_USER",
		"database.password":          "POSTGRES_PASSWORD",
		"database.sslmode":           "DATABASE_SSLMODE",
		"database.max_open_conns":    "DATABASE_MAX_OPEN_CONNS",
		"database.max_idle_conns":    "DATABASE_MAX_IDLE_CONNS",
		"database.conn_max_lifetime": "DATABASE_CONN_MAX_LIFETIME",
		"redis.host":                 "REDIS_HOST",
		"redis.port":                 "REDIS_PORT",
		"minio.endpoint":             "MINIO_ENDPOINT",
		"minio.access_key_id":        "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":    "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":              "MINIO_USE_SSL",
		"minio.bucket":               "MINIO_BUCKET",
		"minio.region":               "MINIO_REGION",
		"minio.bucket_lookup":        "MINIO_BUCKET_LOOKUP",
		"minio.auto_create_bucket":   "MINIO_AUTO_CREATE_BUCKET",
		"worker.concurrency":         "WORKER_CONCURRENCY",
		"worker.metrics_port":        "WORKER_METRICS_PORT",
		"jobs.retention":             "JOB_RETENTION",
		"jobs.sweep_schedule":        "JOB_SWEEP_SCHEDULE",
		"jobs.task_timeout":          "JOB_TASK_TIMEOUT",
		"jobs.queue":                 "JOB_QUEUE",
		"upload.max_bytes":           "UPLOAD_MAX_BYTES",
		"upload.rate_limit":          "UPLOAD_RATE_LIMIT",
		"upload.rate_window":         "UPLOAD_RATE_WINDOW",
		"upload.clamd_addr":          "CLAMD_ADDR",
		"segmenter.endpoint":         "SEGMENTER_ENDPOINT",
		"segmenter.model":            "SEGMENTER_MODEL",
		"segmenter.timeout":          "SEGMENTER_TIMEOUT",
		"face.cascade_path":          "FACE_CASCADE_PATH",
		"face.min_size":              "FACE_MIN_SIZE",
		"face.quality_threshold":     "FACE_QUALITY_THRESHOLD",
		"catalog.path":               "RULE_CATALOG_PATH",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if cfg.MinIO.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	if cfg.Worker.Concurrency <= 0 {
		return errors.New("worker concurrency must be positive")
	}
	if cfg.Jobs.Retention <= 0 {
		return errors.New("job retention must be positive")
	}
	if strings.TrimSpace(cfg.Jobs.SweepSchedule) == "" {
		return errors.New("job sweep schedule is required")
	}
	if cfg.Upload.MaxBytes <= 0 {
		return errors.New("upload max bytes must be positive")
	}
	if len(cfg.Upload.AllowedExtensions) == 0 {
		return errors.New("upload allowed extensions are required")
	}
	if cfg.Segmenter.Endpoint == "" {
		return errors.New("segmenter endpoint is required")
	}
	if cfg.Segmenter.Model == "" {
		return errors.New("segmenter model is required")
	}
	return nil
}
