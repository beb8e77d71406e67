package pcidev

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cromshield-hub/plas-sub000/internal/pci"
)

// Hop bounds tolerate malformed or looping capability chains exposed by
// broken hardware.
const (
	maxCapabilityHops    = 48
	maxExtCapabilityHops = 256
)

// ensureConfig lazily opens the device's config file, read-write first,
// degrading to read-only when permissions deny writing.
func (d *Device) ensureConfig() (*os.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("%w: device %s is closed", pci.ErrIO, d.addr)
	}
	if d.config != nil {
		return d.config, nil
	}

	path := filepath.Join(d.sysfsPath, "config")
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if os.IsPermission(err) {
		d.log.V(1).Info("config space opened read-only", "device", d.addr.String())
		d.configRO = true
		f, err = os.Open(path)
	}
	switch {
	case err == nil:
	case os.IsNotExist(err):
		return nil, fmt.Errorf("%w: config space of %s", pci.ErrNotFound, d.addr)
	case os.IsPermission(err):
		return nil, fmt.Errorf("%w: config space of %s", pci.ErrPermissionDenied, d.addr)
	default:
		return nil, fmt.Errorf("%w: opening config space of %s: %v", pci.ErrIO, d.addr, err)
	}

	d.config = f
	return f, nil
}

func (d *Device) readConfig(offset pci.ConfigOffset, buf []byte) error {
	if int(offset)+len(buf) > pci.ConfigSpaceSize {
		return fmt.Errorf("%w: config offset %#x width %d", pci.ErrInvalidArgument, offset, len(buf))
	}
	f, err := d.ensureConfig()
	if err != nil {
		return err
	}
	n, err := f.ReadAt(buf, int64(offset))
	if err != nil || n != len(buf) {
		return fmt.Errorf("%w: config read at %#x returned %d of %d bytes: %v",
			pci.ErrIO, offset, n, len(buf), err)
	}
	return nil
}

func (d *Device) writeConfig(offset pci.ConfigOffset, buf []byte) error {
	if int(offset)+len(buf) > pci.ConfigSpaceSize {
		return fmt.Errorf("%w: config offset %#x width %d", pci.ErrInvalidArgument, offset, len(buf))
	}
	f, err := d.ensureConfig()
	if err != nil {
		return err
	}
	if d.configRO {
		return fmt.Errorf("%w: config space of %s is read-only", pci.ErrPermissionDenied, d.addr)
	}
	n, err := f.WriteAt(buf, int64(offset))
	if err != nil || n != len(buf) {
		return fmt.Errorf("%w: config write at %#x wrote %d of %d bytes: %v",
			pci.ErrIO, offset, n, len(buf), err)
	}
	return nil
}

// ReadConfig8 reads one byte of config space.
func (d *Device) ReadConfig8(offset pci.ConfigOffset) (uint8, error) {
	var buf [1]byte
	if err := d.readConfig(offset, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadConfig16 reads a little-endian 16-bit config register.
func (d *Device) ReadConfig16(offset pci.ConfigOffset) (uint16, error) {
	var buf [2]byte
	if err := d.readConfig(offset, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

// ReadConfig32 reads a little-endian 32-bit config register.
func (d *Device) ReadConfig32(offset pci.ConfigOffset) (uint32, error) {
	var buf [4]byte
	if err := d.readConfig(offset, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// WriteConfig8 writes one byte of config space.
func (d *Device) WriteConfig8(offset pci.ConfigOffset, val uint8) error {
	return d.writeConfig(offset, []byte{val})
}

// WriteConfig16 writes a little-endian 16-bit config register.
func (d *Device) WriteConfig16(offset pci.ConfigOffset, val uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], val)
	return d.writeConfig(offset, buf[:])
}

// WriteConfig32 writes a little-endian 32-bit config register.
func (d *Device) WriteConfig32(offset pci.ConfigOffset, val uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], val)
	return d.writeConfig(offset, buf[:])
}

// FindCapability walks the standard capability list from the Capabilities
// Pointer and returns the offset of the first capability with the given ID.
func (d *Device) FindCapability(id pci.CapabilityID) (pci.ConfigOffset, error) {
	status, err := d.ReadConfig16(0x06)
	if err != nil {
		return 0, err
	}
	if status&0x0010 == 0 {
		return 0, fmt.Errorf("%w: %s has no capability list", pci.ErrNotFound, d.addr)
	}

	ptr, err := d.ReadConfig8(0x34)
	if err != nil {
		return 0, err
	}
	offset := pci.ConfigOffset(ptr & 0xFC)

	for hops := 0; offset != 0 && hops < maxCapabilityHops; hops++ {
		capID, err := d.ReadConfig8(offset)
		if err != nil {
			return 0, err
		}
		if pci.CapabilityID(capID) == id {
			return offset, nil
		}
		next, err := d.ReadConfig8(offset + 1)
		if err != nil {
			return 0, err
		}
		offset = pci.ConfigOffset(next & 0xFC)
	}
	return 0, fmt.Errorf("%w: capability %#02x on %s", pci.ErrNotFound, uint8(id), d.addr)
}

// FindExtCapability walks the extended capability list from 0x100 and
// returns the offset of the first capability with the given ID. The walk
// stops on a zero or non-increasing next pointer.
func (d *Device) FindExtCapability(id pci.ExtCapabilityID) (pci.ConfigOffset, error) {
	offset := pci.ConfigOffset(0x100)
	for hops := 0; hops < maxExtCapabilityHops; hops++ {
		header, err := d.ReadConfig32(offset)
		if err != nil {
			return 0, err
		}
		if header == 0 || header == 0xFFFFFFFF {
			break
		}
		if pci.ExtCapabilityID(header&0xFFFF) == id {
			return offset, nil
		}
		next := pci.ConfigOffset(header >> 20 & 0xFFC)
		if next == 0 || next <= offset {
			break
		}
		offset = next
	}
	return 0, fmt.Errorf("%w: extended capability %#04x on %s", pci.ErrNotFound, uint16(id), d.addr)
}
