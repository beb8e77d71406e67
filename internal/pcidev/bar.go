package pcidev

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"unsafe"

	"github.com/cromshield-hub/plas-sub000/internal/pci"
	"golang.org/x/sys/unix"
)

// mappedBar is one mmap'd BAR region together with its backing descriptor.
// It is owned by exactly one Device and released exactly once.
type mappedBar struct {
	f    *os.File
	mem  []byte
	size uint64
}

// release unmaps the region, then closes the descriptor, in that order.
func (b *mappedBar) release() error {
	err := unix.Munmap(b.mem)
	if cerr := b.f.Close(); err == nil {
		err = cerr
	}
	b.mem = nil
	return err
}

// barSize reads the device's textual resource table and returns the size of
// the BAR at index. A zero start and end means the BAR is not implemented.
func (d *Device) barSize(index int) (uint64, error) {
	f, err := os.Open(filepath.Join(d.sysfsPath, "resource"))
	if err != nil {
		return 0, fmt.Errorf("%w: resource table of %s", pci.ErrNotFound, d.addr)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for i := 0; scanner.Scan(); i++ {
		if i != index {
			continue
		}
		var start, end, flags uint64
		n, _ := fmt.Sscanf(scanner.Text(), "0x%x 0x%x 0x%x", &start, &end, &flags)
		if n != 3 {
			n, _ = fmt.Sscanf(scanner.Text(), "%x %x %x", &start, &end, &flags)
		}
		if n != 3 {
			return 0, fmt.Errorf("%w: malformed resource line %d of %s", pci.ErrIO, index, d.addr)
		}
		if start == 0 && end == 0 {
			return 0, nil
		}
		return end - start + 1, nil
	}
	return 0, nil
}

// bar returns the cached mapping for the BAR index, creating it on first
// access: size discovery from the resource table, then a full-size mmap of
// the raw resource file.
func (d *Device) bar(index int) (*mappedBar, error) {
	if index < 0 || index > 5 {
		return nil, fmt.Errorf("%w: bar index %d", pci.ErrInvalidArgument, index)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("%w: device %s is closed", pci.ErrIO, d.addr)
	}
	if d.bars[index] != nil {
		return d.bars[index], nil
	}

	size, err := d.barSize(index)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, fmt.Errorf("%w: bar %d of %s is not implemented", pci.ErrNotFound, index, d.addr)
	}

	path := filepath.Join(d.sysfsPath, fmt.Sprintf("resource%d", index))
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	switch {
	case err == nil:
	case os.IsNotExist(err):
		return nil, fmt.Errorf("%w: bar %d resource file of %s", pci.ErrNotFound, index, d.addr)
	case os.IsPermission(err):
		return nil, fmt.Errorf("%w: bar %d resource file of %s", pci.ErrPermissionDenied, index, d.addr)
	default:
		return nil, fmt.Errorf("%w: opening bar %d of %s: %v", pci.ErrIO, index, d.addr, err)
	}

	mem, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: mapping bar %d of %s: %v", pci.ErrIO, index, d.addr, err)
	}

	d.bars[index] = &mappedBar{f: f, mem: mem, size: size}
	d.log.V(1).Info("mapped bar", "device", d.addr.String(), "bar", index, "size", size)
	return d.bars[index], nil
}

// inBounds reports whether n bytes at offset fit inside the mapping. The
// subtraction form cannot wrap, unlike offset+n.
func (b *mappedBar) inBounds(offset, n uint64) bool {
	return offset <= b.size && b.size-offset >= n
}

// checkAccess bounds- and alignment-checks one scalar MMIO access.
func (b *mappedBar) checkAccess(offset uint64, width uint64) error {
	if !b.inBounds(offset, width) {
		return fmt.Errorf("%w: offset %#x width %d exceeds bar size %#x", pci.ErrOutOfRange, offset, width, b.size)
	}
	if offset%width != 0 {
		return fmt.Errorf("%w: offset %#x not %d-byte aligned", pci.ErrInvalidArgument, offset, width)
	}
	return nil
}

// Scalar access goes through sync/atomic so every read and write hits the
// backing MMIO exactly once, in order. The memory is device registers, not
// RAM; plain loads could be reordered or elided.

// BarRead32 reads a 32-bit register from the BAR.
func (d *Device) BarRead32(index int, offset uint64) (uint32, error) {
	b, err := d.bar(index)
	if err != nil {
		return 0, err
	}
	if err := b.checkAccess(offset, 4); err != nil {
		return 0, err
	}
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&b.mem[offset]))), nil
}

// BarRead64 reads a 64-bit register from the BAR.
func (d *Device) BarRead64(index int, offset uint64) (uint64, error) {
	b, err := d.bar(index)
	if err != nil {
		return 0, err
	}
	if err := b.checkAccess(offset, 8); err != nil {
		return 0, err
	}
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(&b.mem[offset]))), nil
}

// BarWrite32 writes a 32-bit register in the BAR.
func (d *Device) BarWrite32(index int, offset uint64, val uint32) error {
	b, err := d.bar(index)
	if err != nil {
		return err
	}
	if err := b.checkAccess(offset, 4); err != nil {
		return err
	}
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&b.mem[offset])), val)
	return nil
}

// BarWrite64 writes a 64-bit register in the BAR.
func (d *Device) BarWrite64(index int, offset uint64, val uint64) error {
	b, err := d.bar(index)
	if err != nil {
		return err
	}
	if err := b.checkAccess(offset, 8); err != nil {
		return err
	}
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&b.mem[offset])), val)
	return nil
}

// BarReadBuffer copies length bytes from the BAR at offset into a fresh
// buffer.
func (d *Device) BarReadBuffer(index int, offset uint64, length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: buffer length %d", pci.ErrInvalidArgument, length)
	}
	b, err := d.bar(index)
	if err != nil {
		return nil, err
	}
	if !b.inBounds(offset, uint64(length)) {
		return nil, fmt.Errorf("%w: offset %#x length %d exceeds bar size %#x", pci.ErrOutOfRange, offset, length, b.size)
	}
	buf := make([]byte, length)
	copy(buf, b.mem[offset:offset+uint64(length)])
	return buf, nil
}

// BarWriteBuffer copies buf into the BAR at offset.
func (d *Device) BarWriteBuffer(index int, offset uint64, buf []byte) error {
	if len(buf) == 0 {
		return fmt.Errorf("%w: empty buffer", pci.ErrInvalidArgument)
	}
	b, err := d.bar(index)
	if err != nil {
		return err
	}
	if !b.inBounds(offset, uint64(len(buf))) {
		return fmt.Errorf("%w: offset %#x length %d exceeds bar size %#x", pci.ErrOutOfRange, offset, len(buf), b.size)
	}
	copy(b.mem[offset:], buf)
	return nil
}
