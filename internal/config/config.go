// Package config holds the explicit settings passed into each command.
// Nothing here is global: flags and environment variables are parsed into
// structs that the commands validate and hand to the reducers.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// DefaultChunkSize is the number of time steps loaded per block.
const DefaultChunkSize = 500

// EnvOrDefault returns the environment variable key, or def when unset or
// empty.
func EnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// SplitList splits a comma-separated list, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Logging selects the log level and handler.
type Logging struct {
	Level  string
	Format string
}

// LoadLogging reads LOG_LEVEL and LOG_FORMAT, defaulting to info and text.
func LoadLogging() Logging {
	return Logging{
		Level:  EnvOrDefault("LOG_LEVEL", "info"),
		Format: EnvOrDefault("LOG_FORMAT", "text"),
	}
}

// Climatology configures a climatology run.
type Climatology struct {
	Input     string
	Output    string
	Variables []string
	ChunkSize int
	Strategy  string
	// KeepGoing skips variables missing from the input instead of aborting.
	KeepGoing bool
}

// Validate checks that every required setting is present.
func (c Climatology) Validate() error {
	if c.Input == "" {
		return errors.New("input path is required")
	}
	if c.Output == "" {
		return errors.New("output path is required")
	}
	if c.Input == c.Output {
		return errors.New("output path must differ from input path")
	}
	if len(c.Variables) == 0 {
		return errors.New("at least one variable name is required")
	}
	seen := make(map[string]bool, len(c.Variables))
	for _, v := range c.Variables {
		if seen[v] {
			return fmt.Errorf("variable %q listed twice", v)
		}
		seen[v] = true
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	return nil
}

// Peak configures a peak magnitude run.
type Peak struct {
	Input     string
	Output    string
	East      string
	North     string
	Name      string
	ChunkSize int
}

// Validate checks that every required setting is present.
func (p Peak) Validate() error {
	if p.Input == "" {
		return errors.New("input path is required")
	}
	if p.Output == "" {
		return errors.New("output path is required")
	}
	if p.Input == p.Output {
		return errors.New("output path must differ from input path")
	}
	if p.East == "" || p.North == "" {
		return errors.New("both vector component names are required")
	}
	if p.East == p.North {
		return fmt.Errorf("east and north components are both %q", p.East)
	}
	if p.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", p.ChunkSize)
	}
	return nil
}

// Credentials authenticate against the data service.
type Credentials struct {
	Username string
	Password string
}

// Environment variables checked for credentials, in order of preference.
var (
	UsernameEnv = []string{"COPERNICUSMARINE_SERVICE_USERNAME", "USRNAME", "USRNM"}
	PasswordEnv = []string{"COPERNICUSMARINE_SERVICE_PASSWORD", "PASSWD"}
)

// LoadCredentials reads the data service account from the environment.
func LoadCredentials() (Credentials, error) {
	c := Credentials{
		Username: firstEnv(UsernameEnv),
		Password: firstEnv(PasswordEnv),
	}
	if c.Username == "" {
		return c, fmt.Errorf("%s is required", strings.Join(UsernameEnv, " or "))
	}
	if c.Password == "" {
		return c, fmt.Errorf("%s is required", strings.Join(PasswordEnv, " or "))
	}
	return c, nil
}

func firstEnv(keys []string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
