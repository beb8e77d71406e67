// Package topology discovers PCI devices and their bus relationships from
// Linux sysfs: existence and classification, parent/child/root-port
// resolution, and remove/rescan control writes.
package topology

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cromshield-hub/plas-sub000/internal/pci"
	"github.com/go-logr/logr"
)

const defaultSysfsRoot = "/sys"

// bdfSegmentRe matches one fully-qualified BDF path segment as sysfs spells
// it: "DDDD:BB:DD.F", hex case-insensitive.
var bdfSegmentRe = regexp.MustCompile(`^[0-9a-fA-F]{4}:[0-9a-fA-F]{2}:[0-9a-fA-F]{2}\.[0-7]$`)

// Node is a classification snapshot of one PCI device. It is recomputed on
// demand and never cached across calls.
type Node struct {
	Address   pci.Address  `json:"address"`
	PortType  pci.PortType `json:"port_type"`
	IsBridge  bool         `json:"is_bridge"`
	SysfsPath string       `json:"sysfs_path"`

	VendorID   uint16 `json:"vendor_id"`
	DeviceID   uint16 `json:"device_id"`
	ClassCode  uint32 `json:"class_code"`
	RevisionID uint8  `json:"revision_id"`
}

// Scanner resolves PCI topology questions against a sysfs tree. The root is
// overridable so tests can run against a synthetic tree.
type Scanner struct {
	root string
	log  logr.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithRoot overrides the sysfs root (default "/sys").
func WithRoot(root string) Option {
	return func(s *Scanner) { s.root = root }
}

// WithLogger attaches a logger for degrade/trace events.
func WithLogger(log logr.Logger) Option {
	return func(s *Scanner) { s.log = log }
}

// NewScanner creates a Scanner over the real or an overridden sysfs root.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{root: defaultSysfsRoot, log: logr.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SysfsPath returns the sysfs device path for the address. Pure path
// construction; the device need not exist.
func (s *Scanner) SysfsPath(addr pci.Address) string {
	return filepath.Join(s.root, "bus", "pci", "devices", addr.String())
}

// DeviceExists reports whether the device is present in sysfs.
func (s *Scanner) DeviceExists(addr pci.Address) bool {
	_, err := os.Stat(s.SysfsPath(addr))
	return err == nil
}

// DeviceInfo returns a classification snapshot of the device.
func (s *Scanner) DeviceInfo(addr pci.Address) (Node, error) {
	devPath := s.SysfsPath(addr)
	if _, err := os.Stat(devPath); err != nil {
		return Node{}, fmt.Errorf("%w: device %s", pci.ErrNotFound, addr)
	}

	node := Node{
		Address:   addr,
		SysfsPath: devPath,
	}
	node.PortType, node.IsBridge = s.classify(devPath)

	node.VendorID, _ = readHexAttr16(devPath, "vendor")
	node.DeviceID, _ = readHexAttr16(devPath, "device")
	node.RevisionID, _ = readHexAttr8(devPath, "revision")
	if class, err := readHexAttr32(devPath, "class"); err == nil {
		node.ClassCode = class & 0xFFFFFF
	}

	return node, nil
}

// classify reads config-space bytes directly to determine the PCIe port type
// and the bridge flag. Read failures degrade to Unknown/non-bridge so the
// topology shape stays queryable under restricted permissions.
func (s *Scanner) classify(devPath string) (pci.PortType, bool) {
	cfg, err := os.ReadFile(filepath.Join(devPath, "config"))
	if err != nil || len(cfg) < pci.ConfigSpaceLegacySize {
		s.log.V(1).Info("config space unreadable, classifying as unknown",
			"path", devPath, "error", err)
		return pci.PortUnknown, false
	}

	isBridge := cfg[0x0E]&0x7F == 1

	portType := pci.PortUnknown
	status := binary.LittleEndian.Uint16(cfg[0x06:0x08])
	if status&0x0010 != 0 {
		if capOff, ok := findPcieCapability(cfg); ok {
			pcieCaps := binary.LittleEndian.Uint16(cfg[capOff+2 : capOff+4])
			code := pci.PortType(pcieCaps >> 4 & 0x0F)
			switch code {
			case pci.PortEndpoint, pci.PortLegacyEndpoint, pci.PortRootPort,
				pci.PortUpstream, pci.PortDownstream, pci.PortPcieToPciBridge,
				pci.PortPciToPcieBridge, pci.PortRCIntegratedEndpoint,
				pci.PortRCEventCollector:
				portType = code
			}
		}
	}

	return portType, isBridge
}

// findPcieCapability walks the standard capability list in a config-space
// snapshot looking for the PCI Express capability.
func findPcieCapability(cfg []byte) (int, bool) {
	ptr := int(cfg[0x34]) & 0xFC
	for hops := 0; ptr != 0 && ptr+3 < len(cfg) && hops < 48; hops++ {
		if pci.CapabilityID(cfg[ptr]) == pci.CapIDPCIExpress {
			return ptr, true
		}
		ptr = int(cfg[ptr+1]) & 0xFC
	}
	return 0, false
}

// ancestorChain resolves the device's sysfs symlink and keeps the BDF-named
// path segments, root-first. The last entry is always the queried device.
func (s *Scanner) ancestorChain(addr pci.Address) ([]pci.Address, error) {
	resolved, err := filepath.EvalSymlinks(s.SysfsPath(addr))
	if err != nil {
		return nil, fmt.Errorf("%w: device %s", pci.ErrNotFound, addr)
	}

	var chain []pci.Address
	for _, seg := range strings.Split(resolved, string(filepath.Separator)) {
		if !bdfSegmentRe.MatchString(seg) {
			continue
		}
		a, err := pci.ParseAddress(seg)
		if err != nil {
			continue
		}
		chain = append(chain, a)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: no bdf segments in resolved path %q", pci.ErrNotFound, resolved)
	}
	return chain, nil
}

// Parent returns the device's upstream PCI device, or nil when the device
// sits directly under a root complex.
func (s *Scanner) Parent(addr pci.Address) (*pci.Address, error) {
	chain, err := s.ancestorChain(addr)
	if err != nil {
		return nil, err
	}
	if len(chain) < 2 {
		return nil, nil
	}
	parent := chain[len(chain)-2]
	return &parent, nil
}

// Children lists the devices directly downstream of a bridge, sorted by
// address.
func (s *Scanner) Children(bridge pci.Address) ([]pci.Address, error) {
	entries, err := os.ReadDir(s.SysfsPath(bridge))
	if err != nil {
		return nil, fmt.Errorf("%w: bridge %s", pci.ErrNotFound, bridge)
	}

	var children []pci.Address
	for _, entry := range entries {
		if !bdfSegmentRe.MatchString(entry.Name()) {
			continue
		}
		a, err := pci.ParseAddress(entry.Name())
		if err != nil {
			continue
		}
		children = append(children, a)
	}
	sort.Slice(children, func(i, j int) bool {
		if children[i].Domain != children[j].Domain {
			return children[i].Domain < children[j].Domain
		}
		return children[i].Bdf.Pack() < children[j].Bdf.Pack()
	})
	return children, nil
}

// RootPort returns the root port above the device: the first ancestor,
// scanned root-to-device, classified as a root port. When no ancestor is
// explicitly typed as one, the topmost ancestor is returned. Some topologies
// omit explicit typing, so that leniency is deliberate.
func (s *Scanner) RootPort(addr pci.Address) (pci.Address, error) {
	chain, err := s.ancestorChain(addr)
	if err != nil {
		return pci.Address{}, err
	}
	for _, a := range chain {
		if node, err := s.DeviceInfo(a); err == nil && node.PortType == pci.PortRootPort {
			return a, nil
		}
	}
	return chain[0], nil
}

// PathToRoot returns classification snapshots from the device up to its
// topmost ancestor, device-first.
func (s *Scanner) PathToRoot(addr pci.Address) ([]Node, error) {
	chain, err := s.ancestorChain(addr)
	if err != nil {
		return nil, err
	}

	nodes := make([]Node, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		node, err := s.DeviceInfo(chain[i])
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// Scan lists every PCI device present under the sysfs root.
func (s *Scanner) Scan() ([]Node, error) {
	busPath := filepath.Join(s.root, "bus", "pci", "devices")
	entries, err := os.ReadDir(busPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", busPath, err)
	}

	var nodes []Node
	for _, entry := range entries {
		addr, err := pci.ParseAddress(entry.Name())
		if err != nil {
			continue
		}
		node, err := s.DeviceInfo(addr)
		if err != nil {
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// RemoveDevice hot-removes the device from the bus.
func (s *Scanner) RemoveDevice(addr pci.Address) error {
	return writeControl(filepath.Join(s.SysfsPath(addr), "remove"))
}

// RescanBridge rescans the bus segment below a bridge.
func (s *Scanner) RescanBridge(addr pci.Address) error {
	return writeControl(filepath.Join(s.SysfsPath(addr), "rescan"))
}

// RescanAll triggers a bus-wide PCI rescan.
func (s *Scanner) RescanAll() error {
	return writeControl(filepath.Join(s.root, "bus", "pci", "rescan"))
}

// writeControl writes the literal "1" a sysfs control file expects.
func writeControl(path string) error {
	err := os.WriteFile(path, []byte("1"), 0200)
	switch {
	case err == nil:
		return nil
	case os.IsNotExist(err):
		return fmt.Errorf("%w: control file %s", pci.ErrNotFound, path)
	case os.IsPermission(err):
		return fmt.Errorf("%w: control file %s", pci.ErrPermissionDenied, path)
	default:
		return fmt.Errorf("%w: writing %s: %v", pci.ErrIO, path, err)
	}
}

func readHexAttr(devPath, name string, bits int) (uint64, error) {
	data, err := os.ReadFile(filepath.Join(devPath, name))
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(data)), 0, bits)
}

func readHexAttr8(devPath, name string) (uint8, error) {
	v, err := readHexAttr(devPath, name, 8)
	return uint8(v), err
}

func readHexAttr16(devPath, name string) (uint16, error) {
	v, err := readHexAttr(devPath, name, 16)
	return uint16(v), err
}

func readHexAttr32(devPath, name string) (uint32, error) {
	v, err := readHexAttr(devPath, name, 32)
	return uint32(v), err
}
