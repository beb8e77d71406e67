package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cromshield-hub/plas-sub000/internal/pci"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devices.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
devices:
  - name: cxl0
    uri: cxl://0000:03:00.0
  - name: nic0
    uri: pcie://0000:a0:1f.7
doe_timeout_ms: 500
doe_poll_interval_us: 50
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Devices) != 2 {
		t.Fatalf("loaded %d devices, want 2", len(cfg.Devices))
	}
	if cfg.DoeTimeout() != 500*time.Millisecond {
		t.Errorf("DoeTimeout() = %v, want 500ms", cfg.DoeTimeout())
	}
	if cfg.DoePollInterval() != 50*time.Microsecond {
		t.Errorf("DoePollInterval() = %v, want 50µs", cfg.DoePollInterval())
	}

	addr, err := cfg.Lookup("cxl0")
	if err != nil {
		t.Fatal(err)
	}
	if addr.String() != "0000:03:00.0" {
		t.Errorf("Lookup(cxl0) = %s, want 0000:03:00.0", addr)
	}

	if _, err := cfg.Lookup("missing"); !errors.Is(err, pci.ErrNotFound) {
		t.Errorf("Lookup(missing) = %v, want ErrNotFound", err)
	}
}

func TestLoadRejectsBadURI(t *testing.T) {
	path := writeConfig(t, `
devices:
  - name: bad
    uri: "0000:03:00.0"
`)
	if _, err := Load(path); err == nil {
		t.Error("Load accepted a uri without a driver scheme")
	}

	path = writeConfig(t, `
devices:
  - name: bad
    uri: cxl://0000:03:20.0
`)
	if _, err := Load(path); !errors.Is(err, pci.ErrInvalidArgument) {
		t.Errorf("Load with device > 0x1f = %v, want ErrInvalidArgument", err)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
devices: []
unexpected: true
`)
	if _, err := Load(path); err == nil {
		t.Error("Load accepted an unknown field")
	}
}

func TestParseDeviceURI(t *testing.T) {
	driver, addr, err := ParseDeviceURI("cxl://0000:03:00.0")
	if err != nil {
		t.Fatal(err)
	}
	if driver != "cxl" {
		t.Errorf("driver = %q, want cxl", driver)
	}
	if addr.Bdf.Bus != 3 {
		t.Errorf("bus = %d, want 3", addr.Bdf.Bus)
	}

	if _, _, err := ParseDeviceURI("no-scheme"); !errors.Is(err, pci.ErrInvalidArgument) {
		t.Errorf("ParseDeviceURI(no scheme) = %v, want ErrInvalidArgument", err)
	}
}
