package pcidev

import (
	"github.com/cromshield-hub/plas-sub000/internal/doe"
	"github.com/cromshield-hub/plas-sub000/internal/pci"
)

// The capability contracts a concrete driver implements selectively. The
// surrounding device framework queries them explicitly instead of relying
// on runtime type inspection.

// ConfigSpace is positioned access to a device's configuration space plus
// the capability-chain walkers.
type ConfigSpace interface {
	ReadConfig8(offset pci.ConfigOffset) (uint8, error)
	ReadConfig16(offset pci.ConfigOffset) (uint16, error)
	ReadConfig32(offset pci.ConfigOffset) (uint32, error)
	WriteConfig8(offset pci.ConfigOffset, val uint8) error
	WriteConfig16(offset pci.ConfigOffset, val uint16) error
	WriteConfig32(offset pci.ConfigOffset, val uint32) error
	FindCapability(id pci.CapabilityID) (pci.ConfigOffset, error)
	FindExtCapability(id pci.ExtCapabilityID) (pci.ConfigOffset, error)
}

// BarSpace is bounds-checked MMIO access to a device's BAR regions.
type BarSpace interface {
	BarRead32(index int, offset uint64) (uint32, error)
	BarRead64(index int, offset uint64) (uint64, error)
	BarWrite32(index int, offset uint64, val uint32) error
	BarWrite64(index int, offset uint64, val uint64) error
	BarReadBuffer(index int, offset uint64, length int) ([]byte, error)
	BarWriteBuffer(index int, offset uint64, buf []byte) error
}

// DoeSpace exposes a device's DOE mailbox, when present.
type DoeSpace interface {
	DOE() (*doe.Mailbox, error)
}

var (
	_ ConfigSpace        = (*Device)(nil)
	_ BarSpace           = (*Device)(nil)
	_ DoeSpace           = (*Device)(nil)
	_ doe.ConfigAccessor = (*Device)(nil)
)
