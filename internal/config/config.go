// Package config loads the device inventory a deployment hands the library:
// named devices addressed by driver URIs of the form
// "driver://DDDD:BB:DD.F", plus DOE polling overrides.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cromshield-hub/plas-sub000/internal/pci"
	"gopkg.in/yaml.v3"
)

// DeviceEntry is one configured device.
type DeviceEntry struct {
	Name string `yaml:"name"`
	URI  string `yaml:"uri"`
}

// Config is the top-level device inventory.
type Config struct {
	Devices []DeviceEntry `yaml:"devices"`

	// DOE polling overrides; zero means library default.
	DoeTimeoutMillis      int `yaml:"doe_timeout_ms"`
	DoePollIntervalMicros int `yaml:"doe_poll_interval_us"`
}

// DoeTimeout returns the configured poll deadline, or zero when unset.
func (c *Config) DoeTimeout() time.Duration {
	return time.Duration(c.DoeTimeoutMillis) * time.Millisecond
}

// DoePollInterval returns the configured poll interval, or zero when unset.
func (c *Config) DoePollInterval() time.Duration {
	return time.Duration(c.DoePollIntervalMicros) * time.Microsecond
}

// Load reads and validates a YAML inventory file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	for _, dev := range cfg.Devices {
		if _, _, err := ParseDeviceURI(dev.URI); err != nil {
			return nil, fmt.Errorf("device %q: %w", dev.Name, err)
		}
	}
	return &cfg, nil
}

// ParseDeviceURI splits a "driver://DDDD:BB:DD.F" URI into the driver name
// and the PCI address.
func ParseDeviceURI(uri string) (driver string, addr pci.Address, err error) {
	driver, rest, ok := strings.Cut(uri, "://")
	if !ok || driver == "" {
		return "", pci.Address{}, fmt.Errorf("%w: device uri %q lacks a driver scheme", pci.ErrInvalidArgument, uri)
	}
	addr, err = pci.ParseAddress(rest)
	if err != nil {
		return "", pci.Address{}, fmt.Errorf("device uri %q: %w", uri, err)
	}
	return driver, addr, nil
}

// Lookup returns the address of a named device.
func (c *Config) Lookup(name string) (pci.Address, error) {
	for _, dev := range c.Devices {
		if dev.Name == name {
			_, addr, err := ParseDeviceURI(dev.URI)
			return addr, err
		}
	}
	return pci.Address{}, fmt.Errorf("%w: device %q not configured", pci.ErrNotFound, name)
}
