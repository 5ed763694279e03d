package adkchat

import "net/http"

// Option is a functional option for configuring a Client
type Option func(*Config) error

// WithBaseURL overrides the agent service base URL
func WithBaseURL(url string) Option {
	return func(c *Config) error {
		if url == "" {
			return NewClientError("WithBaseURL", ErrInvalidConfig)
		}
		c.BaseURL = url
		return nil
	}
}

// WithAppName sets the application name used in session endpoints
func WithAppName(name string) Option {
	return func(c *Config) error {
		c.AppName = name
		return nil
	}
}

// WithUserID sets the user id used in session endpoints
func WithUserID(id string) Option {
	return func(c *Config) error {
		c.UserID = id
		return nil
	}
}

// WithHTTPClient sets the http.Client used for all requests
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) error {
		if hc == nil {
			return NewClientError("WithHTTPClient", ErrInvalidConfig)
		}
		c.HTTPClient = hc
		return nil
	}
}

// WithLogger sets the structured logger. *slog.Logger satisfies Logger.
func WithLogger(l Logger) Option {
	return func(c *Config) error {
		c.Logger = l
		return nil
	}
}
