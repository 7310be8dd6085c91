// Package config loads and validates the node's INI configuration file.
package config

import (
	"fmt"
	"net/netip"
	"time"

	"gopkg.in/ini.v1"
)

// ErrConfig wraps any configuration error: a missing required key, a bad
// address, or an out-of-range numeric value. Per spec §7, configuration
// errors are fatal at startup.
type ErrConfig struct {
	msg string
}

func (e *ErrConfig) Error() string { return "config: " + e.msg }

func errConfig(format string, args ...any) error {
	return &ErrConfig{msg: fmt.Sprintf(format, args...)}
}

// Config holds a node's recognized INI keys, all under the [dht] section.
type Config struct {
	ListenAddress         netip.AddrPort
	APIAddress            netip.AddrPort
	WorkerThreads         int
	Timeout               time.Duration
	Fingers               int
	StabilizationInterval time.Duration
}

// Defaults mirror spec §6's table for every key but the two required
// addresses.
func defaults() Config {
	return Config{
		WorkerThreads:         4,
		Timeout:               300000 * time.Millisecond,
		Fingers:               128,
		StabilizationInterval: 60 * time.Second,
	}
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, errConfig("load %s: %v", path, err)
	}

	section := file.Section("dht")

	cfg := defaults()

	listenStr := section.Key("listen_address").String()
	if listenStr == "" {
		return nil, errConfig("missing required key listen_address")
	}
	cfg.ListenAddress, err = netip.ParseAddrPort(listenStr)
	if err != nil {
		return nil, errConfig("listen_address: %v", err)
	}

	apiStr := section.Key("api_address").String()
	if apiStr == "" {
		return nil, errConfig("missing required key api_address")
	}
	cfg.APIAddress, err = netip.ParseAddrPort(apiStr)
	if err != nil {
		return nil, errConfig("api_address: %v", err)
	}

	if section.HasKey("worker_threads") {
		cfg.WorkerThreads, err = section.Key("worker_threads").Int()
		if err != nil {
			return nil, errConfig("worker_threads: %v", err)
		}
	}

	if section.HasKey("timeout") {
		ms, err := section.Key("timeout").Int()
		if err != nil {
			return nil, errConfig("timeout: %v", err)
		}
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}

	if section.HasKey("fingers") {
		cfg.Fingers, err = section.Key("fingers").Int()
		if err != nil {
			return nil, errConfig("fingers: %v", err)
		}
	}

	if section.HasKey("stabilization_interval") {
		secs, err := section.Key("stabilization_interval").Int()
		if err != nil {
			return nil, errConfig("stabilization_interval: %v", err)
		}
		cfg.StabilizationInterval = time.Duration(secs) * time.Second
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every numeric field is within a sane range.
func (c *Config) Validate() error {
	if c.WorkerThreads <= 0 {
		return errConfig("worker_threads must be positive, got %d", c.WorkerThreads)
	}
	if c.Timeout <= 0 {
		return errConfig("timeout must be positive, got %s", c.Timeout)
	}
	if c.Fingers <= 0 || c.Fingers > 256 {
		return errConfig("fingers must be between 1 and 256, got %d", c.Fingers)
	}
	if c.StabilizationInterval <= 0 {
		return errConfig("stabilization_interval must be positive, got %s", c.StabilizationInterval)
	}
	if !c.ListenAddress.IsValid() {
		return errConfig("listen_address is invalid")
	}
	if !c.APIAddress.IsValid() {
		return errConfig("api_address is invalid")
	}
	return nil
}
