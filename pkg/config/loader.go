package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvFileVar names the variable listing extra dotenv files, comma separated.
const EnvFileVar = "BILLING_ENV_FILE"

var (
	mu      sync.Mutex
	loaded  = make(map[reflect.Type]any)
	envOnce sync.Once
)

// Load fills v from environment variables using its `env` struct tags.
// Each config type is parsed once per process; later calls get the cached copy.
//
// Before the first parse the optional .env file and any files listed in
// BILLING_ENV_FILE are loaded. Values already set in the process environment win.
//
//	var cfg billing.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	envOnce.Do(loadDefaultEnv)

	key := reflect.TypeFor[T]()

	mu.Lock()
	defer mu.Unlock()

	if cached, ok := loaded[key]; ok {
		*v = cached.(T)
		return nil
	}

	var parsed T
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	loaded[key] = parsed
	*v = parsed
	return nil
}

// MustLoad works like Load but panics on failure. Use it for settings the
// process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// LoadEnv loads the given dotenv files into the process environment without
// overriding variables that are already set. Every path must exist.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrEnvFile, err)
	}
	return nil
}

// Reset drops every cached config so the next Load parses the environment again.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	clear(loaded)
}

func loadDefaultEnv() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var extra []string
	for p := range strings.SplitSeq(os.Getenv(EnvFileVar), ",") {
		if p = strings.TrimSpace(p); p != "" {
			extra = append(extra, p)
		}
	}
	_ = LoadEnv(extra...)
}
