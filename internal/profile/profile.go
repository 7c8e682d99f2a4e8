package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where daybreak stores its fallback snapshots
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// Remote preference endpoint configuration
	RemoteBaseURL string        // DAYBREAK_REMOTE_BASE_URL
	RemoteToken   string        // DAYBREAK_REMOTE_TOKEN
	RemoteTimeout time.Duration // DAYBREAK_REMOTE_TIMEOUT_SECONDS (default: 10s)
	// RemoteMaxRetries bounds read-path retries. Writes and test calls
	// never retry regardless of this value.
	RemoteMaxRetries int // DAYBREAK_REMOTE_MAX_RETRIES (default: 2)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from DAYBREAK_* environment variables.
func (p *Profile) FromEnv() {
	p.RemoteBaseURL = getEnvOrDefault("DAYBREAK_REMOTE_BASE_URL", p.RemoteBaseURL)
	p.RemoteToken = getEnvOrDefault("DAYBREAK_REMOTE_TOKEN", p.RemoteToken)

	if v := os.Getenv("DAYBREAK_REMOTE_TIMEOUT_SECONDS"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			p.RemoteTimeout = time.Duration(seconds) * time.Second
		}
	}
	if p.RemoteTimeout <= 0 {
		p.RemoteTimeout = 10 * time.Second
	}

	if v := os.Getenv("DAYBREAK_REMOTE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.RemoteMaxRetries = n
		}
	}
	if p.RemoteMaxRetries <= 0 {
		p.RemoteMaxRetries = 2
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "daybreak")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/daybreak"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("daybreak_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	if p.RemoteBaseURL == "" {
		return errors.New("remote preference endpoint base URL is required")
	}

	return nil
}
