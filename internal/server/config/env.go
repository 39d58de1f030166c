package config

import (
	"fmt"
	"strconv"
	"time"
)

const envPrefix = "USERSVC_"

type lookupFunc func(key string) (string, bool)

// parseEnv overlays USERSVC_* environment variables onto config.
func parseEnv(config *Config, lookup lookupFunc) error {
	strs := map[string]*string{
		"HTTP_ADDR":           &config.HTTPAddr,
		"DATABASE_DSN":        &config.DatabaseDSN,
		"LOG_LEVEL":           &config.LogLevel,
		"STORAGE_ROOT":        &config.StorageRoot,
		"BLOB_BACKEND":        &config.BlobBackend,
		"S3_ACCESS_KEY":       &config.S3AccessKey,
		"S3_SECRET_KEY":       &config.S3SecretKey,
		"S3_BUCKET":           &config.S3Bucket,
		"S3_REGION":           &config.S3Region,
		"S3_BASE_ENDPOINT":    &config.S3BaseEndpoint,
		"IDENTITY_BASE_URL":   &config.IdentityBaseURL,
		"IDENTITY_API_KEY":    &config.IdentityAPIKey,
		"SMTP_HOST":           &config.SMTPHost,
		"SMTP_USER":           &config.SMTPUser,
		"SMTP_PASSWORD":       &config.SMTPPassword,
		"SMTP_FROM":           &config.SMTPFrom,
		"EVENT_BUS":           &config.EventBus,
		"AMQP_URL":            &config.AMQPURL,
		"AMQP_EXCHANGE":       &config.AMQPExchange,
		"REDIS_DSN":           &config.RedisDSN,
		"REDIS_STREAM_PREFIX": &config.RedisStreamPrefix,
		"SECRET_KEY":          &config.SecretKey,
	}
	for name, dst := range strs {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"REQUEST_TIMEOUT":  &config.RequestTimeout,
		"GC_INTERVAL":      &config.GCInterval,
		"IDENTITY_TIMEOUT": &config.IdentityTimeout,
		"TOKEN_VALIDITY":   &config.TokenValidity,
	}
	for name, dst := range durations {
		v, ok := lookup(envPrefix + name)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"SMTP_PORT":      &config.SMTPPort,
		"IDENTITY_BURST": &config.IdentityBurst,
	}
	for name, dst := range ints {
		v, ok := lookup(envPrefix + name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = n
	}

	if v, ok := lookup(envPrefix + "MAX_AVATAR_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sMAX_AVATAR_BYTES: %w", envPrefix, err)
		}
		config.MaxAvatarBytes = n
	}
	if v, ok := lookup(envPrefix + "IDENTITY_RATE_LIMIT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sIDENTITY_RATE_LIMIT: %w", envPrefix, err)
		}
		config.IdentityRateLimit = f
	}
	return nil
}
