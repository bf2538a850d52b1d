// Package env loads gateway configuration from a .env file once at startup
// and answers lookups from that snapshot, falling back to the process
// environment for containerized deployments that set variables directly.
package env

import (
	"os"

	"github.com/joho/godotenv"
)

// Env holds the key/value pairs read from the .env file.
var Env map[string]string

// envFileCandidates covers the places the gateway binaries run from: the
// repo root, cmd/stacksgate and cmd/migrate.
var envFileCandidates = []string{
	".env",
	"../../.env",
	"../../../.env",
}

// GetEnv returns the configured value for key, preferring the .env snapshot
// over the process environment, or def when neither has it.
func GetEnv(key, def string) string {
	if val, ok := Env[key]; ok {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// SetupEnvFile reads the first .env file it finds and panics when none of
// the candidate locations has one.
func SetupEnvFile() {
	for _, candidate := range envFileCandidates {
		if vars, err := godotenv.Read(candidate); err == nil {
			Env = vars
			return
		}
	}
	panic("No .env file found in any of the expected locations")
}

// IsDev reports whether the gateway runs with relaxed development settings.
func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
