package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/dmitrijs2005/usersvc/internal/timex"
)

// FileConfig is the on-disk shape of the config file. Durations accept
// strings such as "30s" or integer nanoseconds. Fields left out of the file
// keep their previous value.
type FileConfig struct {
	HTTPAddr       string         `json:"http_addr" toml:"http_addr"`
	DatabaseDSN    string         `json:"database_dsn" toml:"database_dsn"`
	LogLevel       string         `json:"log_level" toml:"log_level"`
	RequestTimeout timex.Duration `json:"request_timeout" toml:"request_timeout"`

	StorageRoot    string          `json:"storage_root" toml:"storage_root"`
	BlobBackend    string          `json:"blob_backend" toml:"blob_backend"`
	MaxAvatarBytes int64           `json:"max_avatar_bytes" toml:"max_avatar_bytes"`
	GCInterval     *timex.Duration `json:"gc_interval" toml:"gc_interval"`
	S3AccessKey    string          `json:"s3_access_key" toml:"s3_access_key"`
	S3SecretKey    string          `json:"s3_secret_key" toml:"s3_secret_key"`
	S3Bucket       string          `json:"s3_bucket" toml:"s3_bucket"`
	S3Region       string          `json:"s3_region" toml:"s3_region"`
	S3BaseEndpoint string          `json:"s3_base_endpoint" toml:"s3_base_endpoint"`

	IdentityBaseURL   string         `json:"identity_base_url" toml:"identity_base_url"`
	IdentityAPIKey    string         `json:"identity_api_key" toml:"identity_api_key"`
	IdentityTimeout   timex.Duration `json:"identity_timeout" toml:"identity_timeout"`
	IdentityRateLimit float64        `json:"identity_rate_limit" toml:"identity_rate_limit"`
	IdentityBurst     int            `json:"identity_burst" toml:"identity_burst"`

	SMTPHost     string `json:"smtp_host" toml:"smtp_host"`
	SMTPPort     int    `json:"smtp_port" toml:"smtp_port"`
	SMTPUser     string `json:"smtp_user" toml:"smtp_user"`
	SMTPPassword string `json:"smtp_password" toml:"smtp_password"`
	SMTPFrom     string `json:"smtp_from" toml:"smtp_from"`

	EventBus          string `json:"event_bus" toml:"event_bus"`
	AMQPURL           string `json:"amqp_url" toml:"amqp_url"`
	AMQPExchange      string `json:"amqp_exchange" toml:"amqp_exchange"`
	RedisDSN          string `json:"redis_dsn" toml:"redis_dsn"`
	RedisStreamPrefix string `json:"redis_stream_prefix" toml:"redis_stream_prefix"`

	SecretKey     string         `json:"secret_key" toml:"secret_key"`
	TokenValidity timex.Duration `json:"token_validity" toml:"token_validity"`
}

// parseFile overlays the config file at path onto config. Files ending in
// .toml are decoded as TOML, everything else as JSON.
func parseFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := &FileConfig{}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, fc)
	} else {
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	fc.apply(config)
	return nil
}

func (fc *FileConfig) apply(c *Config) {
	setString(&c.HTTPAddr, fc.HTTPAddr)
	setString(&c.DatabaseDSN, fc.DatabaseDSN)
	setString(&c.LogLevel, fc.LogLevel)
	setNonZero(&c.RequestTimeout, fc.RequestTimeout.Duration)

	setString(&c.StorageRoot, fc.StorageRoot)
	setString(&c.BlobBackend, fc.BlobBackend)
	setNonZero(&c.MaxAvatarBytes, fc.MaxAvatarBytes)
	// an explicit 0 disables GC, so absence is told apart by the pointer
	if fc.GCInterval != nil {
		c.GCInterval = fc.GCInterval.Duration
	}
	setString(&c.S3AccessKey, fc.S3AccessKey)
	setString(&c.S3SecretKey, fc.S3SecretKey)
	setString(&c.S3Bucket, fc.S3Bucket)
	setString(&c.S3Region, fc.S3Region)
	setString(&c.S3BaseEndpoint, fc.S3BaseEndpoint)

	setString(&c.IdentityBaseURL, fc.IdentityBaseURL)
	setString(&c.IdentityAPIKey, fc.IdentityAPIKey)
	setNonZero(&c.IdentityTimeout, fc.IdentityTimeout.Duration)
	setNonZero(&c.IdentityRateLimit, fc.IdentityRateLimit)
	setNonZero(&c.IdentityBurst, fc.IdentityBurst)

	setString(&c.SMTPHost, fc.SMTPHost)
	setNonZero(&c.SMTPPort, fc.SMTPPort)
	setString(&c.SMTPUser, fc.SMTPUser)
	setString(&c.SMTPPassword, fc.SMTPPassword)
	setString(&c.SMTPFrom, fc.SMTPFrom)

	setString(&c.EventBus, fc.EventBus)
	setString(&c.AMQPURL, fc.AMQPURL)
	setString(&c.AMQPExchange, fc.AMQPExchange)
	setString(&c.RedisDSN, fc.RedisDSN)
	setString(&c.RedisStreamPrefix, fc.RedisStreamPrefix)

	setString(&c.SecretKey, fc.SecretKey)
	setNonZero(&c.TokenValidity, fc.TokenValidity.Duration)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setNonZero[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}
