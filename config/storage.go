package config

// StorageConfig 存储配置
type StorageConfig struct {
	Type   string      `mapstructure:"type"` // local, minio 或 s3
	Prefix string      `mapstructure:"prefix"`
	Local  LocalConfig `mapstructure:"local"`
	Minio  MinioConfig `mapstructure:"minio"`
	S3     S3Config    `mapstructure:"s3"`
}

type LocalConfig struct {
	Path string `mapstructure:"path"`
}

type MinioConfig struct {
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	Endpoint   string `mapstructure:"endpoint"`
	UseSSL     bool   `mapstructure:"use_ssl"`
	Region     string `mapstructure:"region"`
	BucketName string `mapstructure:"bucket_name"`
}

type S3Config struct {
	BucketName string `mapstructure:"bucket_name"`
	Region     string `mapstructure:"region"`
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
}

// env names kept from the earlier .env layout
var storageEnv = map[string]string{
	"storage.minio.access_key":  "MINIO_ACCESS_KEY",
	"storage.minio.secret_key":  "MINIO_SECRET_KEY",
	"storage.minio.endpoint":    "MINIO_ENDPOINT",
	"storage.minio.region":      "MINIO_REGION",
	"storage.minio.bucket_name": "MINIO_BUCKET_NAME",
	"storage.s3.bucket_name":    "AWS_S3_BUCKET_NAME",
	"storage.s3.region":         "AWS_REGION",
	"storage.s3.endpoint":       "AWS_ENDPOINT",
	"storage.s3.access_key":     "AWS_ACCESS_KEY",
	"storage.s3.secret_key":     "AWS_SECRET_KEY",
}
