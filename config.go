package adkchat

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultAppName = "lucident_agent"
	DefaultUserID  = "user"

	defaultHTTPTimeout = 30 * time.Second
)

// Environment variable names read by ConfigFromEnv.
const (
	EnvBaseURL = "ADKCHAT_BASE_URL"
	EnvAppName = "ADKCHAT_APP_NAME"
	EnvUserID  = "ADKCHAT_USER_ID"
)

// Config holds configuration for the Client.
type Config struct {
	// BaseURL is the root of the agent service, without a trailing slash.
	// Session endpoints and /run_sse are resolved under it.
	// Defaults to DefaultBaseURL.
	BaseURL string

	// AppName is the application segment of the session endpoints.
	// Defaults to DefaultAppName.
	AppName string

	// UserID is the user segment of the session endpoints.
	// Defaults to DefaultUserID.
	UserID string

	// HTTPClient is the client used for all requests. The zero value gets a
	// client with a sane timeout; streaming requests strip the timeout so
	// long-lived SSE responses are not cut off.
	HTTPClient *http.Client

	// Logger for structured logging.
	// If nil, logging is disabled. *slog.Logger satisfies this interface.
	Logger Logger
}

// Logger interface for structured logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards everything. Used when Config.Logger is nil.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return noopLogger{}
}

// DefaultConfig returns a new Config with default values.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		AppName: DefaultAppName,
		UserID:  DefaultUserID,
	}
}

// ConfigFromEnv builds a Config from ADKCHAT_* environment variables,
// loading a .env file first when one is present. Unset variables keep
// their defaults.
func ConfigFromEnv() Config {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv(EnvAppName); v != "" {
		cfg.AppName = v
	}
	if v := os.Getenv(EnvUserID); v != "" {
		cfg.UserID = v
	}
	return cfg
}

// applyDefaults fills in default values for zero-valued fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.AppName == "" {
		c.AppName = DefaultAppName
	}
	if c.UserID == "" {
		c.UserID = DefaultUserID
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: BaseURL is required", ErrInvalidConfig)
	}
	if c.AppName == "" {
		return fmt.Errorf("%w: AppName is required", ErrInvalidConfig)
	}
	if c.UserID == "" {
		return fmt.Errorf("%w: UserID is required", ErrInvalidConfig)
	}
	return nil
}
