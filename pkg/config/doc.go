// Package config loads typed configuration from environment variables.
//
// It wraps github.com/caarlos0/env/v11 for struct-tag parsing and
// github.com/joho/godotenv for local .env files. Each config type is parsed
// once per process and cached, so packages can call Load for their own
// Config struct without coordinating:
//
//	type Config struct {
//	    Provider string        `env:"BILLING_PROVIDER" envDefault:"mercadopago"`
//	    Timeout  time.Duration `env:"BILLING_PROCESSOR_TIMEOUT" envDefault:"15s"`
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
//
// Files named in BILLING_ENV_FILE (comma separated) are loaded after the
// default .env. Variables already present in the process environment are
// never overridden. Tests that change the environment call Reset.
package config
