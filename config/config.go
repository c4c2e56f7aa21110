package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/feichai0017/deck-recovery/internal/recovery"
	"github.com/feichai0017/deck-recovery/pkg/logger"
)

// Config 应用程序配置
type Config struct {
	Recovery RecoveryConfig `mapstructure:"recovery"`
	Logger   logger.Config  `mapstructure:"logger"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Server   ServerConfig   `mapstructure:"server"`
}

// RecoveryConfig 恢复流程配置
type RecoveryConfig struct {
	MaxSlides     int    `mapstructure:"max_slides"`
	SlidesPerFile int    `mapstructure:"slides_per_file"`
	MaxFiles      int    `mapstructure:"max_files"`
	OutputDir     string `mapstructure:"output_dir"`
	WorkDir       string `mapstructure:"work_dir"`
	CleanText     bool   `mapstructure:"clean_text"`
	Aggressive    bool   `mapstructure:"aggressive"`
}

// Pipeline converts the limits into the recovery package's form.
func (c RecoveryConfig) Pipeline() recovery.Config {
	return recovery.Config{
		MaxSlides:     c.MaxSlides,
		SlidesPerFile: c.SlidesPerFile,
		MaxFiles:      c.MaxFiles,
		WorkDir:       c.WorkDir,
	}
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	Concurrency   int    `mapstructure:"concurrency"`
	RetryLimit    int    `mapstructure:"retry_limit"`
	StatusTTLHrs  int    `mapstructure:"status_ttl_hours"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Address       string   `mapstructure:"address"`
	MaxUploadMB   int64    `mapstructure:"max_upload_mb"`
	AllowOrigins  []string `mapstructure:"allow_origins"`
	RetentionDays int      `mapstructure:"retention_days"`
}

// Load reads an optional .env file, then the YAML file at path (if any), with
// environment variables overriding both. An empty path yields defaults plus env.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range storageEnv {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks limits and clamps the slide total to the hard cap.
func (c *Config) Validate() error {
	r := &c.Recovery
	if r.MaxSlides < 1 || r.SlidesPerFile < 1 || r.MaxFiles < 1 {
		return fmt.Errorf("recovery limits must be >= 1 (max_slides=%d slides_per_file=%d max_files=%d)",
			r.MaxSlides, r.SlidesPerFile, r.MaxFiles)
	}
	r.MaxSlides = min(r.MaxSlides, recovery.HardSlideCap)

	switch c.Storage.Type {
	case "local", "minio", "s3":
	default:
		return fmt.Errorf("unsupported storage type: %q", c.Storage.Type)
	}
	if c.Queue.Concurrency < 1 {
		return fmt.Errorf("queue concurrency must be >= 1")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	def := recovery.DefaultConfig()
	v.SetDefault("recovery.max_slides", def.MaxSlides)
	v.SetDefault("recovery.slides_per_file", def.SlidesPerFile)
	v.SetDefault("recovery.max_files", def.MaxFiles)
	v.SetDefault("recovery.output_dir", "recovered")
	v.SetDefault("recovery.work_dir", "")
	v.SetDefault("recovery.clean_text", false)
	v.SetDefault("recovery.aggressive", false)

	log := logger.DefaultConfig()
	v.SetDefault("logger.level", log.Level)
	v.SetDefault("logger.encoding", log.Encoding)
	v.SetDefault("logger.output_paths", log.OutputPaths)
	v.SetDefault("logger.error_paths", []string{})
	v.SetDefault("logger.max_size", log.MaxSize)
	v.SetDefault("logger.max_backups", log.MaxBackups)
	v.SetDefault("logger.max_age", log.MaxAge)
	v.SetDefault("logger.compress", log.Compress)
	v.SetDefault("logger.development", false)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.prefix", "recoveries")
	v.SetDefault("storage.local.path", "data/storage")
	v.SetDefault("storage.minio.endpoint", "localhost:9000")
	v.SetDefault("storage.minio.use_ssl", false)
	v.SetDefault("storage.minio.bucket_name", "deck-recovery")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket_name", "deck-recovery")

	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_password", "")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.retry_limit", 2)
	v.SetDefault("queue.status_ttl_hours", 24)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.max_upload_mb", 200)
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("server.retention_days", 7)
}
