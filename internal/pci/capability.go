package pci

// CapabilityID identifies a standard PCI capability.
type CapabilityID uint8

// Standard PCI capability IDs.
const (
	CapIDPowerManagement   CapabilityID = 0x01
	CapIDAGP               CapabilityID = 0x02
	CapIDVPD               CapabilityID = 0x03
	CapIDSlotID            CapabilityID = 0x04
	CapIDMSI               CapabilityID = 0x05
	CapIDCompactPCIHotSwap CapabilityID = 0x06
	CapIDPCIX              CapabilityID = 0x07
	CapIDHyperTransport    CapabilityID = 0x08
	CapIDVendorSpecific    CapabilityID = 0x09
	CapIDDebugPort         CapabilityID = 0x0A
	CapIDCompactPCI        CapabilityID = 0x0B
	CapIDPCIHotPlug        CapabilityID = 0x0C
	CapIDBridgeSubsysVID   CapabilityID = 0x0D
	CapIDAGP8x             CapabilityID = 0x0E
	CapIDSecureDevice      CapabilityID = 0x0F
	CapIDPCIExpress        CapabilityID = 0x10
	CapIDMSIX              CapabilityID = 0x11
	CapIDSATADataIndex     CapabilityID = 0x12
	CapIDAdvancedFeatures  CapabilityID = 0x13
	CapIDEnhancedAlloc     CapabilityID = 0x14
	CapIDFlatteningPortal  CapabilityID = 0x15
)

// ExtCapabilityID identifies a PCIe extended capability.
type ExtCapabilityID uint16

// Extended PCI capability IDs (PCIe extended config space).
const (
	ExtCapIDAER                ExtCapabilityID = 0x0001
	ExtCapIDVCNoMFVC           ExtCapabilityID = 0x0002
	ExtCapIDDeviceSerialNumber ExtCapabilityID = 0x0003
	ExtCapIDPowerBudgeting     ExtCapabilityID = 0x0004
	ExtCapIDRCLinkDeclaration  ExtCapabilityID = 0x0005
	ExtCapIDRCInternalLinkCtl  ExtCapabilityID = 0x0006
	ExtCapIDRCEventCollector   ExtCapabilityID = 0x0007
	ExtCapIDMFVC               ExtCapabilityID = 0x0008
	ExtCapIDVC                 ExtCapabilityID = 0x0009
	ExtCapIDRCRB               ExtCapabilityID = 0x000A
	ExtCapIDVendorSpecific     ExtCapabilityID = 0x000B
	ExtCapIDACS                ExtCapabilityID = 0x000D
	ExtCapIDARI                ExtCapabilityID = 0x000E
	ExtCapIDATS                ExtCapabilityID = 0x000F
	ExtCapIDSRIOV              ExtCapabilityID = 0x0010
	ExtCapIDMulticast          ExtCapabilityID = 0x0012
	ExtCapIDPageRequest        ExtCapabilityID = 0x0013
	ExtCapIDResizableBAR       ExtCapabilityID = 0x0015
	ExtCapIDDPA                ExtCapabilityID = 0x0016
	ExtCapIDTPHRequester       ExtCapabilityID = 0x0017
	ExtCapIDLTR                ExtCapabilityID = 0x0018
	ExtCapIDSecondaryPCIe      ExtCapabilityID = 0x0019
	ExtCapIDPASID              ExtCapabilityID = 0x001B
	ExtCapIDDPC                ExtCapabilityID = 0x001D
	ExtCapIDL1PMSubstates      ExtCapabilityID = 0x001E
	ExtCapIDPTM                ExtCapabilityID = 0x001F
	ExtCapIDDVSEC              ExtCapabilityID = 0x0023
	ExtCapIDDataLinkFeature    ExtCapabilityID = 0x0025
	ExtCapIDPhys16GT           ExtCapabilityID = 0x0026
	ExtCapIDLaneMargining      ExtCapabilityID = 0x0027
	ExtCapIDDOE                ExtCapabilityID = 0x002E
)

// String returns the human-readable name for a standard PCI capability ID.
func (id CapabilityID) String() string {
	switch id {
	case CapIDPowerManagement:
		return "Power Management"
	case CapIDAGP:
		return "AGP"
	case CapIDVPD:
		return "Vital Product Data"
	case CapIDSlotID:
		return "Slot Identification"
	case CapIDMSI:
		return "MSI"
	case CapIDCompactPCIHotSwap:
		return "CompactPCI HotSwap"
	case CapIDPCIX:
		return "PCI-X"
	case CapIDHyperTransport:
		return "HyperTransport"
	case CapIDVendorSpecific:
		return "Vendor Specific"
	case CapIDDebugPort:
		return "Debug Port"
	case CapIDCompactPCI:
		return "CompactPCI"
	case CapIDPCIHotPlug:
		return "PCI Hot-Plug"
	case CapIDBridgeSubsysVID:
		return "Bridge Subsystem VID"
	case CapIDAGP8x:
		return "AGP 8x"
	case CapIDSecureDevice:
		return "Secure Device"
	case CapIDPCIExpress:
		return "PCI Express"
	case CapIDMSIX:
		return "MSI-X"
	case CapIDSATADataIndex:
		return "SATA Data/Index"
	case CapIDAdvancedFeatures:
		return "Advanced Features"
	case CapIDEnhancedAlloc:
		return "Enhanced Allocation"
	case CapIDFlatteningPortal:
		return "Flattening Portal Bridge"
	default:
		return "Unknown"
	}
}

// String returns the human-readable name for an extended capability ID.
func (id ExtCapabilityID) String() string {
	switch id {
	case ExtCapIDAER:
		return "Advanced Error Reporting"
	case ExtCapIDVCNoMFVC:
		return "Virtual Channel (No MFVC)"
	case ExtCapIDDeviceSerialNumber:
		return "Device Serial Number"
	case ExtCapIDPowerBudgeting:
		return "Power Budgeting"
	case ExtCapIDRCLinkDeclaration:
		return "Root Complex Link Declaration"
	case ExtCapIDVendorSpecific:
		return "Vendor Specific"
	case ExtCapIDACS:
		return "Access Control Services"
	case ExtCapIDARI:
		return "Alternative Routing-ID Interpretation"
	case ExtCapIDATS:
		return "Address Translation Services"
	case ExtCapIDSRIOV:
		return "Single Root I/O Virtualization"
	case ExtCapIDResizableBAR:
		return "Resizable BAR"
	case ExtCapIDLTR:
		return "Latency Tolerance Reporting"
	case ExtCapIDSecondaryPCIe:
		return "Secondary PCI Express"
	case ExtCapIDL1PMSubstates:
		return "L1 PM Substates"
	case ExtCapIDPTM:
		return "Precision Time Measurement"
	case ExtCapIDDPC:
		return "Downstream Port Containment"
	case ExtCapIDPASID:
		return "Process Address Space ID"
	case ExtCapIDDVSEC:
		return "Designated Vendor-Specific"
	case ExtCapIDDataLinkFeature:
		return "Data Link Feature"
	case ExtCapIDPhys16GT:
		return "Physical Layer 16 GT/s"
	case ExtCapIDLaneMargining:
		return "Lane Margining"
	case ExtCapIDDOE:
		return "Data Object Exchange"
	default:
		return "Unknown"
	}
}
