package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// MinSecretLen is the minimum size of the session secret in bytes.
const MinSecretLen = 32

// Error is a fatal startup configuration problem. It is never produced
// per-request; Load runs once in main.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

type Config struct {
	// Secret keys the session token codec. At least MinSecretLen bytes.
	Secret []byte
	// Port the HTTP server listens on, e.g. "8080".
	Port string
	// DatabaseURL is the Postgres DSN. Empty selects the in-memory store.
	DatabaseURL string
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	// .env is a dev convenience; absence is fine.
	_ = godotenv.Load()

	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		return Config{}, &Error{Field: "SESSION_SECRET", Reason: "is required"}
	}
	if len(secret) < MinSecretLen {
		return Config{}, &Error{Field: "SESSION_SECRET", Reason: fmt.Sprintf("must be at least %d bytes", MinSecretLen)}
	}

	port := os.Getenv("PORT")
	if port == "" {
		return Config{}, &Error{Field: "PORT", Reason: "is required"}
	}

	return Config{
		Secret:      []byte(secret),
		Port:        port,
		DatabaseURL: os.Getenv("DATABASE_URL"),
	}, nil
}
