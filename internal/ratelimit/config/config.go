package config

import "time"

// Limit defines sliding-window parameters for one scope.
type Limit struct {
	Max    int
	Window time.Duration
}

// Config holds rate limiting configuration. The IP window is always active;
// the user window only applies when a principal is present on the contract.
type Config struct {
	IP            Limit
	User          Limit
	SweepInterval time.Duration
}

// Default returns the built-in limits used when nothing is configured.
func Default() *Config {
	return &Config{
		IP:            Limit{Max: 60, Window: time.Minute},
		User:          Limit{Max: 120, Window: time.Minute},
		SweepInterval: 5 * time.Minute,
	}
}
