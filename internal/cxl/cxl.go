// Package cxl layers CXL DVSEC discovery on the extended-capability walk:
// locating the designated vendor-specific capabilities CXL defines (vendor
// ID 0x1E98) and decoding the device capability/control bits they carry.
package cxl

import (
	"fmt"

	"github.com/cromshield-hub/plas-sub000/internal/pci"
)

// VendorID is the CXL consortium vendor ID carried in every CXL DVSEC.
const VendorID = 0x1E98

// CXL DVSEC IDs.
const (
	DvsecIDPcieDevice      uint16 = 0x0000
	DvsecIDNonCxlFuncMap   uint16 = 0x0002
	DvsecIDPortExtensions  uint16 = 0x0003
	DvsecIDPortGPF         uint16 = 0x0004
	DvsecIDDeviceGPF       uint16 = 0x0005
	DvsecIDFlexBusPort     uint16 = 0x0007
	DvsecIDRegisterLocator uint16 = 0x0008
	DvsecIDMLD             uint16 = 0x0009
)

const maxExtCapabilityHops = 256

// RegisterReader is the 32-bit config-space read access the DVSEC walk
// needs. *pcidev.Device implements it.
type RegisterReader interface {
	ReadConfig32(offset pci.ConfigOffset) (uint32, error)
}

// Dvsec describes one located CXL DVSEC.
type Dvsec struct {
	Offset   pci.ConfigOffset
	ID       uint16
	Revision uint8
	Length   uint16
}

// FindDvsec walks the extended capability list for the CXL DVSEC with the
// given ID. The walk follows the same bounds as the generic extended walk:
// it stops on a zero or non-increasing next pointer.
func FindDvsec(regs RegisterReader, dvsecID uint16) (Dvsec, error) {
	offset := pci.ConfigOffset(0x100)
	for hops := 0; hops < maxExtCapabilityHops; hops++ {
		header, err := regs.ReadConfig32(offset)
		if err != nil {
			return Dvsec{}, err
		}
		if header == 0 || header == 0xFFFFFFFF {
			break
		}

		if pci.ExtCapabilityID(header&0xFFFF) == pci.ExtCapIDDVSEC {
			hdr1, err := regs.ReadConfig32(offset + 0x04)
			if err != nil {
				return Dvsec{}, err
			}
			hdr2, err := regs.ReadConfig32(offset + 0x08)
			if err != nil {
				return Dvsec{}, err
			}
			if uint16(hdr1) == VendorID && uint16(hdr2) == dvsecID {
				return Dvsec{
					Offset:   offset,
					ID:       dvsecID,
					Revision: uint8(hdr1 >> 16 & 0xF),
					Length:   uint16(hdr1 >> 20 & 0xFFF),
				}, nil
			}
		}

		next := pci.ConfigOffset(header >> 20 & 0xFFC)
		if next == 0 || next <= offset {
			break
		}
		offset = next
	}
	return Dvsec{}, fmt.Errorf("%w: cxl dvsec %#04x", pci.ErrNotFound, dvsecID)
}

// Caps is the CXL.cache/.io/.mem capability and enable state from the PCIe
// DVSEC for CXL devices.
type Caps struct {
	Cache   bool
	IO      bool
	Mem     bool
	CacheEn bool
	IOEn    bool
	MemEn   bool
}

// ReadCaps locates the device DVSEC and decodes its capability and control
// registers.
func ReadCaps(regs RegisterReader) (Caps, error) {
	dvsec, err := FindDvsec(regs, DvsecIDPcieDevice)
	if err != nil {
		return Caps{}, err
	}

	// The 16-bit capability register sits at +0x0A, control at +0x0C.
	capWord, err := regs.ReadConfig32(dvsec.Offset + 0x08)
	if err != nil {
		return Caps{}, err
	}
	ctrlWord, err := regs.ReadConfig32(dvsec.Offset + 0x0C)
	if err != nil {
		return Caps{}, err
	}

	capability := uint16(capWord >> 16)
	control := uint16(ctrlWord)
	return Caps{
		Cache:   capability&(1<<0) != 0,
		IO:      capability&(1<<1) != 0,
		Mem:     capability&(1<<2) != 0,
		CacheEn: control&(1<<0) != 0,
		IOEn:    control&(1<<1) != 0,
		MemEn:   control&(1<<2) != 0,
	}, nil
}
