package config

import "time"

// Config holds runtime settings for the pocketsync agent.
//
// Fields:
//   - ServerURL: base URL of the backend HTTP endpoint.
//   - DatabaseDSN: path of the on-device SQLite database.
//   - SyncInterval: period of the background reconciliation pass.
//   - PingInterval: how often the agent probes backend reachability.
//   - RequestTimeout: per-request bound for backend calls.
type Config struct {
	ServerURL      string
	DatabaseDSN    string
	SyncInterval   time.Duration
	PingInterval   time.Duration
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.DatabaseDSN = "pocketsync.db"
	c.SyncInterval = 5 * time.Minute
	c.PingInterval = 3 * time.Second
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
