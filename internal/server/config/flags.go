package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/usersvc/internal/flagx"
)

// parseFlags overlays command-line flags onto config.
//
// Supported flags:
//
//	-a string   HTTP bind address (e.g. ":3000")
//	-d string   PostgreSQL DSN
//	-l string   log level
//	-r string   avatar storage root directory
//	-k string   blob backend (fs|s3)
//	-i string   identity service base URL
//	-m string   event bus (amqp|redis|none)
//	-s string   secret key for bearer tokens
//	-u string   S3 access key
//	-p string   S3 secret key
//	-b string   S3 bucket
//	-g string   S3 region
//	-e string   S3 base endpoint
//
// Only these flags are taken from args, so -c/-config and unknown flags do
// not cause a parse error.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-l", "-r", "-k", "-i", "-m", "-s", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("usersvc", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.StorageRoot, "r", config.StorageRoot, "avatar storage root")
	fs.StringVar(&config.BlobBackend, "k", config.BlobBackend, "blob backend (fs|s3)")
	fs.StringVar(&config.IdentityBaseURL, "i", config.IdentityBaseURL, "identity service base URL")
	fs.StringVar(&config.EventBus, "m", config.EventBus, "event bus (amqp|redis|none)")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	return fs.Parse(args)
}
