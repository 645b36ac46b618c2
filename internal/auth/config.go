package auth

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultAccessTTL  = 24 * time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Config carries the signing secrets and token lifetimes. It is built once
// at startup and passed to NewIssuer; nothing in this package reads the
// process environment.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Validate rejects missing secrets and a refresh secret equal to the access
// secret, which would let one token kind pass as the other.
func (c Config) Validate() error {
	if strings.TrimSpace(c.AccessSecret) == "" {
		return fmt.Errorf("%w: access secret is required", ErrConfig)
	}
	if strings.TrimSpace(c.RefreshSecret) == "" {
		return fmt.Errorf("%w: refresh secret is required", ErrConfig)
	}
	if c.AccessSecret == c.RefreshSecret {
		return fmt.Errorf("%w: access and refresh secrets must differ", ErrConfig)
	}
	if c.AccessTTL < 0 || c.RefreshTTL < 0 {
		return fmt.Errorf("%w: negative token ttl", ErrConfig)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.AccessTTL == 0 {
		c.AccessTTL = DefaultAccessTTL
	}
	if c.RefreshTTL == 0 {
		c.RefreshTTL = DefaultRefreshTTL
	}
	return c
}
