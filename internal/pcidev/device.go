// Package pcidev is the per-device facade over the OS resources a PCI/CXL
// device exposes through sysfs: the config-space file, mapped BAR regions,
// and the DOE mailbox. A Device exclusively owns every descriptor and
// mapping it creates and releases them exactly once on Close.
package pcidev

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cromshield-hub/plas-sub000/internal/doe"
	"github.com/cromshield-hub/plas-sub000/internal/pci"
	"github.com/go-logr/logr"
)

const defaultSysfsRoot = "/sys"

// Device is an open handle on one PCI device. The config descriptor and BAR
// mappings are created lazily and cached for the Device's lifetime.
type Device struct {
	addr      pci.Address
	sysfsPath string
	log       logr.Logger

	mu       sync.Mutex
	config   *os.File
	configRO bool
	bars     [6]*mappedBar
	mailbox  *doe.Mailbox
	doeOpts  []doe.Option
	closed   bool
}

// Option configures a Device.
type Option func(*Device)

// WithSysfsRoot overrides the sysfs root (default "/sys").
func WithSysfsRoot(root string) Option {
	return func(d *Device) {
		d.sysfsPath = filepath.Join(root, "bus", "pci", "devices", d.addr.String())
	}
}

// WithLogger attaches a logger.
func WithLogger(log logr.Logger) Option {
	return func(d *Device) { d.log = log }
}

// WithDoeOptions forwards options (timeout, poll interval) to the device's
// DOE mailbox when it is first located.
func WithDoeOptions(opts ...doe.Option) Option {
	return func(d *Device) { d.doeOpts = opts }
}

// Open creates a handle on the device at addr. The device must exist in
// sysfs; its resources are opened lazily on first use.
func Open(addr pci.Address, opts ...Option) (*Device, error) {
	d := &Device{
		addr:      addr,
		sysfsPath: filepath.Join(defaultSysfsRoot, "bus", "pci", "devices", addr.String()),
		log:       logr.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if _, err := os.Stat(d.sysfsPath); err != nil {
		return nil, fmt.Errorf("%w: device %s", pci.ErrNotFound, addr)
	}
	return d, nil
}

// Address returns the device's PCI address.
func (d *Device) Address() pci.Address { return d.addr }

// DOE locates the device's DOE extended capability and returns its mailbox.
// The mailbox is created once and shared; its internal lock serializes all
// transactions on this device.
func (d *Device) DOE() (*doe.Mailbox, error) {
	d.mu.Lock()
	if d.mailbox != nil {
		mb := d.mailbox
		d.mu.Unlock()
		return mb, nil
	}
	d.mu.Unlock()

	off, err := d.FindExtCapability(pci.ExtCapIDDOE)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mailbox == nil {
		opts := append([]doe.Option{doe.WithLogger(d.log)}, d.doeOpts...)
		d.mailbox = doe.NewMailbox(d, off, opts...)
	}
	return d.mailbox, nil
}

// Close releases the config descriptor and every BAR mapping. Mappings are
// unmapped before their descriptors are closed. Close is idempotent.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	var firstErr error
	for i, bar := range d.bars {
		if bar == nil {
			continue
		}
		if err := bar.release(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("releasing bar %d: %w", i, err)
		}
		d.bars[i] = nil
	}
	if d.config != nil {
		if err := d.config.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing config: %w", err)
		}
		d.config = nil
	}
	return firstErr
}
