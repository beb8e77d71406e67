package pcidev

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cromshield-hub/plas-sub000/internal/pci"
)

const testAddr = "0000:03:00.0"

// newTestDevice materializes a single-device sysfs tree and opens it.
func newTestDevice(t *testing.T, cfg []byte, resourceTable string, barFiles map[int]int) *Device {
	t.Helper()
	root := t.TempDir()
	devDir := filepath.Join(root, "bus", "pci", "devices", testAddr)
	if err := os.MkdirAll(devDir, 0755); err != nil {
		t.Fatal(err)
	}

	full := make([]byte, pci.ConfigSpaceSize)
	copy(full, cfg)
	if err := os.WriteFile(filepath.Join(devDir, "config"), full, 0644); err != nil {
		t.Fatal(err)
	}
	if resourceTable != "" {
		if err := os.WriteFile(filepath.Join(devDir, "resource"), []byte(resourceTable), 0644); err != nil {
			t.Fatal(err)
		}
	}
	for index, size := range barFiles {
		name := filepath.Join(devDir, fmt.Sprintf("resource%d", index))
		if err := os.WriteFile(name, make([]byte, size), 0644); err != nil {
			t.Fatal(err)
		}
	}

	addr, err := pci.ParseAddress(testAddr)
	if err != nil {
		t.Fatal(err)
	}
	d, err := Open(addr, WithSysfsRoot(root))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

// testResourceTable exposes a 4KB memory BAR 0 and nothing else.
const testResourceTable = `0x00000000fe000000 0x00000000fe000fff 0x00040200
0x0000000000000000 0x0000000000000000 0x00000000
0x0000000000000000 0x0000000000000000 0x00000000
0x0000000000000000 0x0000000000000000 0x00000000
0x0000000000000000 0x0000000000000000 0x00000000
0x0000000000000000 0x0000000000000000 0x00000000
`

func TestOpenNotFound(t *testing.T) {
	addr, _ := pci.ParseAddress("0000:0a:00.0")
	_, err := Open(addr, WithSysfsRoot(t.TempDir()))
	if !errors.Is(err, pci.ErrNotFound) {
		t.Errorf("Open(absent) = %v, want ErrNotFound", err)
	}
}

func TestConfigReadWrite(t *testing.T) {
	cfg := make([]byte, 256)
	binary.LittleEndian.PutUint16(cfg[0x00:], 0x8086)
	binary.LittleEndian.PutUint32(cfg[0x10:], 0xFEBC0004)
	d := newTestDevice(t, cfg, "", nil)

	if v, err := d.ReadConfig16(0x00); err != nil || v != 0x8086 {
		t.Errorf("ReadConfig16(0) = %#x, %v, want 0x8086", v, err)
	}
	if v, err := d.ReadConfig32(0x10); err != nil || v != 0xFEBC0004 {
		t.Errorf("ReadConfig32(0x10) = %#x, %v, want 0xfebc0004", v, err)
	}
	if v, err := d.ReadConfig8(0x01); err != nil || v != 0x80 {
		t.Errorf("ReadConfig8(1) = %#x, %v, want 0x80", v, err)
	}

	if err := d.WriteConfig32(0x40, 0xDEADBEEF); err != nil {
		t.Fatal(err)
	}
	if v, err := d.ReadConfig32(0x40); err != nil || v != 0xDEADBEEF {
		t.Errorf("readback = %#x, %v, want 0xdeadbeef", v, err)
	}
}

func TestConfigOffsetBounds(t *testing.T) {
	d := newTestDevice(t, nil, "", nil)
	if _, err := d.ReadConfig32(0xFFE); !errors.Is(err, pci.ErrInvalidArgument) {
		t.Errorf("ReadConfig32(0xFFE) = %v, want ErrInvalidArgument", err)
	}
	if err := d.WriteConfig16(0xFFF, 0); !errors.Is(err, pci.ErrInvalidArgument) {
		t.Errorf("WriteConfig16(0xFFF) = %v, want ErrInvalidArgument", err)
	}
}

func TestFindCapability(t *testing.T) {
	cfg := make([]byte, 256)
	binary.LittleEndian.PutUint16(cfg[0x06:], 0x0010)
	cfg[0x34] = 0x40
	cfg[0x40] = byte(pci.CapIDPCIExpress)
	cfg[0x41] = 0x50
	cfg[0x50] = byte(pci.CapIDMSI)
	cfg[0x51] = 0x00
	d := newTestDevice(t, cfg, "", nil)

	off, err := d.FindCapability(pci.CapIDMSI)
	if err != nil {
		t.Fatal(err)
	}
	if off != 0x50 {
		t.Errorf("FindCapability(MSI) = %#x, want 0x50", off)
	}

	if _, err := d.FindCapability(pci.CapIDMSIX); !errors.Is(err, pci.ErrNotFound) {
		t.Errorf("FindCapability(absent) = %v, want ErrNotFound", err)
	}
}

func TestFindCapabilityNoList(t *testing.T) {
	d := newTestDevice(t, make([]byte, 256), "", nil)
	if _, err := d.FindCapability(pci.CapIDMSI); !errors.Is(err, pci.ErrNotFound) {
		t.Errorf("FindCapability without list = %v, want ErrNotFound", err)
	}
}

func extHeader(id pci.ExtCapabilityID, next uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(id)|1<<16|next<<20)
	return buf[:]
}

func TestFindExtCapability(t *testing.T) {
	cfg := make([]byte, pci.ConfigSpaceSize)
	copy(cfg[0x100:], extHeader(pci.ExtCapIDAER, 0x140))
	copy(cfg[0x140:], extHeader(pci.ExtCapIDDOE, 0))
	d := newTestDevice(t, cfg, "", nil)

	off, err := d.FindExtCapability(pci.ExtCapIDDOE)
	if err != nil {
		t.Fatal(err)
	}
	if off != 0x140 {
		t.Errorf("FindExtCapability(DOE) = %#x, want 0x140", off)
	}

	if _, err := d.FindExtCapability(pci.ExtCapIDSRIOV); !errors.Is(err, pci.ErrNotFound) {
		t.Errorf("FindExtCapability(absent) = %v, want ErrNotFound", err)
	}
}

func TestFindExtCapabilityNonIncreasingChain(t *testing.T) {
	// 0x140 points back at 0x100; the walk must terminate, not loop.
	cfg := make([]byte, pci.ConfigSpaceSize)
	copy(cfg[0x100:], extHeader(pci.ExtCapIDAER, 0x140))
	copy(cfg[0x140:], extHeader(pci.ExtCapIDVC, 0x100))
	d := newTestDevice(t, cfg, "", nil)

	_, err := d.FindExtCapability(pci.ExtCapIDDOE)
	if !errors.Is(err, pci.ErrNotFound) {
		t.Errorf("FindExtCapability on looping chain = %v, want ErrNotFound", err)
	}
}

func TestBarScalarRoundtrip(t *testing.T) {
	d := newTestDevice(t, nil, testResourceTable, map[int]int{0: 4096})

	if err := d.BarWrite64(0, 0x10, 0x0123456789ABCDEF); err != nil {
		t.Fatal(err)
	}
	v, err := d.BarRead64(0, 0x10)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x0123456789ABCDEF {
		t.Errorf("BarRead64 = %#x, want 0x0123456789abcdef", v)
	}

	if err := d.BarWrite32(0, 0x20, 0xCAFEBABE); err != nil {
		t.Fatal(err)
	}
	if v, err := d.BarRead32(0, 0x20); err != nil || v != 0xCAFEBABE {
		t.Errorf("BarRead32 = %#x, %v, want 0xcafebabe", v, err)
	}
}

func TestBarOutOfRange(t *testing.T) {
	d := newTestDevice(t, nil, testResourceTable, map[int]int{0: 4096})

	if _, err := d.BarRead32(0, 4096-3); !errors.Is(err, pci.ErrOutOfRange) {
		t.Errorf("BarRead32(size-3) = %v, want ErrOutOfRange", err)
	}
	if err := d.BarWrite64(0, 4092, 0); !errors.Is(err, pci.ErrOutOfRange) {
		t.Errorf("BarWrite64(size-4) = %v, want ErrOutOfRange", err)
	}
}

func TestBarOffsetOverflow(t *testing.T) {
	// Offsets near the top of the uint64 range must not wrap the bounds
	// arithmetic into an in-range index.
	d := newTestDevice(t, nil, testResourceTable, map[int]int{0: 4096})

	if _, err := d.BarRead32(0, ^uint64(0)-3); !errors.Is(err, pci.ErrOutOfRange) {
		t.Errorf("BarRead32(max-3) = %v, want ErrOutOfRange", err)
	}
	if err := d.BarWrite64(0, ^uint64(0)-7, 0); !errors.Is(err, pci.ErrOutOfRange) {
		t.Errorf("BarWrite64(max-7) = %v, want ErrOutOfRange", err)
	}
	if _, err := d.BarReadBuffer(0, ^uint64(0)-7, 16); !errors.Is(err, pci.ErrOutOfRange) {
		t.Errorf("BarReadBuffer(max-7, 16) = %v, want ErrOutOfRange", err)
	}
	if err := d.BarWriteBuffer(0, ^uint64(0)-7, make([]byte, 16)); !errors.Is(err, pci.ErrOutOfRange) {
		t.Errorf("BarWriteBuffer(max-7, 16) = %v, want ErrOutOfRange", err)
	}
}

func TestBarInvalidIndex(t *testing.T) {
	d := newTestDevice(t, nil, testResourceTable, map[int]int{0: 4096})

	if _, err := d.BarRead32(6, 0); !errors.Is(err, pci.ErrInvalidArgument) {
		t.Errorf("BarRead32(index 6) = %v, want ErrInvalidArgument", err)
	}
	if _, err := d.BarRead32(-1, 0); !errors.Is(err, pci.ErrInvalidArgument) {
		t.Errorf("BarRead32(index -1) = %v, want ErrInvalidArgument", err)
	}
}

func TestBarNotImplemented(t *testing.T) {
	d := newTestDevice(t, nil, testResourceTable, map[int]int{0: 4096})

	if _, err := d.BarRead32(1, 0); !errors.Is(err, pci.ErrNotFound) {
		t.Errorf("BarRead32 on zero-size bar = %v, want ErrNotFound", err)
	}
}

func TestBarBuffer(t *testing.T) {
	d := newTestDevice(t, nil, testResourceTable, map[int]int{0: 4096})

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01}
	if err := d.BarWriteBuffer(0, 0x100, payload); err != nil {
		t.Fatal(err)
	}
	got, err := d.BarReadBuffer(0, 0x100, len(payload))
	if err != nil {
		t.Fatal(err)
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("BarReadBuffer = % x, want % x", got, payload)
		}
	}

	if err := d.BarWriteBuffer(0, 0, nil); !errors.Is(err, pci.ErrInvalidArgument) {
		t.Errorf("BarWriteBuffer(empty) = %v, want ErrInvalidArgument", err)
	}
	if _, err := d.BarReadBuffer(0, 0, 0); !errors.Is(err, pci.ErrInvalidArgument) {
		t.Errorf("BarReadBuffer(zero length) = %v, want ErrInvalidArgument", err)
	}
	if _, err := d.BarReadBuffer(0, 4090, 16); !errors.Is(err, pci.ErrOutOfRange) {
		t.Errorf("BarReadBuffer past end = %v, want ErrOutOfRange", err)
	}
}

func TestBarMappingCached(t *testing.T) {
	d := newTestDevice(t, nil, testResourceTable, map[int]int{0: 4096})

	first, err := d.bar(0)
	if err != nil {
		t.Fatal(err)
	}
	second, err := d.bar(0)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("second access did not return the cached mapping")
	}
}

func TestCloseReleasesOnce(t *testing.T) {
	d := newTestDevice(t, nil, testResourceTable, map[int]int{0: 4096})
	if _, err := d.bar(0); err != nil {
		t.Fatal(err)
	}

	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if d.bars[0] != nil || d.config != nil {
		t.Error("Close did not release cached resources")
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestAccessAfterClose(t *testing.T) {
	d := newTestDevice(t, nil, testResourceTable, map[int]int{0: 4096})
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := d.ReadConfig32(0); !errors.Is(err, pci.ErrIO) {
		t.Errorf("ReadConfig32 after Close = %v, want ErrIO", err)
	}
	if _, err := d.BarRead32(0, 0); !errors.Is(err, pci.ErrIO) {
		t.Errorf("BarRead32 after Close = %v, want ErrIO", err)
	}
	if d.config != nil || d.bars[0] != nil {
		t.Error("access after Close reopened a released resource")
	}
}

func TestConfigReadOnlyDegrade(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file modes do not restrict root")
	}
	cfg := make([]byte, 256)
	binary.LittleEndian.PutUint16(cfg[0x00:], 0x8086)
	d := newTestDevice(t, cfg, "", nil)
	if err := os.Chmod(filepath.Join(d.sysfsPath, "config"), 0444); err != nil {
		t.Fatal(err)
	}

	if v, err := d.ReadConfig16(0x00); err != nil || v != 0x8086 {
		t.Errorf("ReadConfig16 on read-only config = %#x, %v, want 0x8086", v, err)
	}
	if !d.configRO {
		t.Error("device did not record the read-only degrade")
	}
	if err := d.WriteConfig32(0x40, 0); !errors.Is(err, pci.ErrPermissionDenied) {
		t.Errorf("WriteConfig32 on read-only config = %v, want ErrPermissionDenied", err)
	}
}

func TestDOELazySingleton(t *testing.T) {
	cfg := make([]byte, pci.ConfigSpaceSize)
	copy(cfg[0x100:], extHeader(pci.ExtCapIDDOE, 0))
	d := newTestDevice(t, cfg, "", nil)

	mb, err := d.DOE()
	if err != nil {
		t.Fatal(err)
	}
	again, err := d.DOE()
	if err != nil {
		t.Fatal(err)
	}
	if mb != again {
		t.Error("DOE() created a second mailbox for the same device")
	}
}

func TestDOEAbsent(t *testing.T) {
	d := newTestDevice(t, nil, "", nil)
	if _, err := d.DOE(); !errors.Is(err, pci.ErrNotFound) {
		t.Errorf("DOE() without capability = %v, want ErrNotFound", err)
	}
}
