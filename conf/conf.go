package conf

import (
	"os"
	"path/filepath"
	"time"
)

type Bootstrap struct {
	Logging Logging `yaml:"logging" json:"logging"`
	Storage Storage `yaml:"storage" json:"storage"`
	Sync    Sync    `yaml:"sync" json:"sync"`
}

type Logging struct {
	Level  string `yaml:"level" json:"level"`
	Caller bool   `yaml:"caller" json:"caller"`
}

type Storage struct {
	// Driver is nutsdb or sqlite.
	Driver string `yaml:"driver" json:"driver"`
	Path   string `yaml:"path" json:"path"`
	// Latency is a Go duration added to every record store call.
	Latency string `yaml:"latency" json:"latency"`
}

type Sync struct {
	// Schedule is a cron spec, e.g. "@every 30s".
	Schedule string `yaml:"schedule" json:"schedule"`
}

// Default returns the configuration used when no config file exists.
func Default() *Bootstrap {
	path := ".taskboard"
	if home, err := os.UserHomeDir(); err == nil {
		path = filepath.Join(home, ".taskboard")
	}
	return &Bootstrap{
		Logging: Logging{Level: "warn"},
		Storage: Storage{Driver: "nutsdb", Path: path, Latency: "0s"},
		Sync:    Sync{Schedule: "@every 30s"},
	}
}

// LatencyDuration parses Latency. Empty means no latency.
func (s *Storage) LatencyDuration() (time.Duration, error) {
	if s.Latency == "" {
		return 0, nil
	}
	return time.ParseDuration(s.Latency)
}
