package pcidev

import (
	"github.com/cromshield-hub/plas-sub000/internal/cxl"
)

// CxlDvsecSpace exposes CXL DVSEC discovery on a device.
type CxlDvsecSpace interface {
	CxlDvsec(dvsecID uint16) (cxl.Dvsec, error)
	CxlCaps() (cxl.Caps, error)
}

var _ CxlDvsecSpace = (*Device)(nil)

// CxlDvsec locates the CXL DVSEC with the given ID on this device.
func (d *Device) CxlDvsec(dvsecID uint16) (cxl.Dvsec, error) {
	return cxl.FindDvsec(d, dvsecID)
}

// CxlCaps reads the device's CXL.cache/.io/.mem capability and enable bits.
func (d *Device) CxlCaps() (cxl.Caps, error) {
	return cxl.ReadCaps(d)
}
