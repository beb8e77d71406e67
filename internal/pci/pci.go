// Package pci defines PCI/CXL address value types, capability identifiers,
// and the error taxonomy shared by the topology, device, and DOE layers.
package pci

import (
	"fmt"
	"regexp"
	"strconv"
)

// Config space sizes.
const (
	// ConfigSpaceSize is the full PCIe extended config space size (4KB).
	ConfigSpaceSize = 4096
	// ConfigSpaceLegacySize is the legacy PCI config space size (256 bytes).
	ConfigSpaceLegacySize = 256
)

// ConfigOffset is a byte offset into a device's configuration space,
// 0x000-0xFFF.
type ConfigOffset uint16

// Bdf is a PCI Bus:Device.Function triple. Device carries 5 valid bits and
// Function 3; the packing routines mask off anything above that.
type Bdf struct {
	Bus      uint8
	Device   uint8
	Function uint8
}

// Pack encodes the Bdf into its 16-bit wire form:
// bus<<8 | device<<3 | function.
func (b Bdf) Pack() uint16 {
	return uint16(b.Bus)<<8 | uint16(b.Device&0x1F)<<3 | uint16(b.Function&0x07)
}

// BdfFromPacked decodes a 16-bit packed BDF value.
func BdfFromPacked(v uint16) Bdf {
	return Bdf{
		Bus:      uint8(v >> 8),
		Device:   uint8(v>>3) & 0x1F,
		Function: uint8(v) & 0x07,
	}
}

// String returns the BDF without a domain: "BB:DD.F".
func (b Bdf) String() string {
	return fmt.Sprintf("%02x:%02x.%x", b.Bus, b.Device, b.Function)
}

// Address is a full PCI address: domain plus BDF.
type Address struct {
	Domain uint16
	Bdf    Bdf
}

var addressRe = regexp.MustCompile(`^([0-9a-fA-F]{1,4}):([0-9a-fA-F]{1,2}):([0-9a-fA-F]{1,2})\.([0-9a-fA-F])$`)

// ParseAddress parses the canonical "DDDD:BB:DD.F" form. Device must be
// <= 0x1F and function <= 0x07.
func ParseAddress(s string) (Address, error) {
	m := addressRe.FindStringSubmatch(s)
	if m == nil {
		return Address{}, fmt.Errorf("%w: malformed PCI address %q, expected DDDD:BB:DD.F", ErrInvalidArgument, s)
	}

	domain, _ := strconv.ParseUint(m[1], 16, 16)
	bus, _ := strconv.ParseUint(m[2], 16, 8)
	device, _ := strconv.ParseUint(m[3], 16, 8)
	function, _ := strconv.ParseUint(m[4], 16, 8)

	if device > 0x1F {
		return Address{}, fmt.Errorf("%w: device %#02x exceeds 0x1f in %q", ErrInvalidArgument, device, s)
	}
	if function > 0x07 {
		return Address{}, fmt.Errorf("%w: function %#x exceeds 0x7 in %q", ErrInvalidArgument, function, s)
	}

	return Address{
		Domain: uint16(domain),
		Bdf: Bdf{
			Bus:      uint8(bus),
			Device:   uint8(device),
			Function: uint8(function),
		},
	}, nil
}

// String returns the canonical lowercase form: "DDDD:BB:DD.F".
func (a Address) String() string {
	return fmt.Sprintf("%04x:%02x:%02x.%x", a.Domain, a.Bdf.Bus, a.Bdf.Device, a.Bdf.Function)
}

// PortType is the PCI Express device/port type from the PCIe Capabilities
// register, bits [7:4].
type PortType uint8

// PCIe port types.
const (
	PortEndpoint             PortType = 0x00
	PortLegacyEndpoint       PortType = 0x01
	PortRootPort             PortType = 0x04
	PortUpstream             PortType = 0x05
	PortDownstream           PortType = 0x06
	PortPcieToPciBridge      PortType = 0x07
	PortPciToPcieBridge      PortType = 0x08
	PortRCIntegratedEndpoint PortType = 0x09
	PortRCEventCollector     PortType = 0x0A
	PortUnknown              PortType = 0xFF
)

// String returns the port type name used in CLI output.
func (p PortType) String() string {
	switch p {
	case PortEndpoint:
		return "Endpoint"
	case PortLegacyEndpoint:
		return "Legacy Endpoint"
	case PortRootPort:
		return "Root Port"
	case PortUpstream:
		return "Upstream Port"
	case PortDownstream:
		return "Downstream Port"
	case PortPcieToPciBridge:
		return "PCIe-to-PCI Bridge"
	case PortPciToPcieBridge:
		return "PCI-to-PCIe Bridge"
	case PortRCIntegratedEndpoint:
		return "RC Integrated Endpoint"
	case PortRCEventCollector:
		return "RC Event Collector"
	default:
		return "Unknown"
	}
}

// DoeProtocolID identifies one data-object protocol a DOE mailbox speaks.
type DoeProtocolID struct {
	VendorID       uint16 `json:"vendor_id"`
	DataObjectType uint8  `json:"data_object_type"`
}

// String returns "vvvv:tt" for display.
func (p DoeProtocolID) String() string {
	return fmt.Sprintf("%04x:%02x", p.VendorID, p.DataObjectType)
}
