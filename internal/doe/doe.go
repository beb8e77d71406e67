// Package doe implements the PCIe/CXL Data Object Exchange mailbox protocol
// over a device's DOE extended capability: object framing, protocol
// discovery, and request/response exchange with bounded busy/ready polling.
package doe

import (
	"fmt"
	"sync"
	"time"

	"github.com/cromshield-hub/plas-sub000/internal/pci"
	"github.com/go-logr/logr"
)

// DOE register offsets, relative to the extended capability base.
const (
	regControl      = 0x08 // write Abort (bit 0) or Go (bit 31)
	regStatus       = 0x0C // Busy (bit 0), Error (bit 2), Ready (bit 31)
	regWriteMailbox = 0x10 // each write pushes one DWord into the outgoing FIFO
	regReadMailbox  = 0x14 // each read pops one DWord from the incoming FIFO
)

// Control and status bits.
const (
	ctrlAbort = 1 << 0
	ctrlGo    = 1 << 31

	statusBusy  = 1 << 0
	statusError = 1 << 2
	statusReady = 1 << 31
)

// Object framing. Every DOE object is at least two DWords: DW0 carries the
// vendor ID and data object type, DW1 the total length in DWords including
// the header. A zero length encodes 2^18.
const (
	headerDwords    = 2
	lengthMask      = 0x3FFFF
	maxObjectDwords = 1 << 18
)

// The PCI-SIG discovery protocol every mailbox must answer.
const (
	discoveryVendorID = 0x0001
	discoveryType     = 0x00
)

// maxDiscoveryHops bounds discovery iteration. The protocol terminates only
// on a zero next index, which a broken mailbox may never produce.
const maxDiscoveryHops = 256

// Polling defaults.
const (
	DefaultTimeout      = 1000 * time.Millisecond
	DefaultPollInterval = 100 * time.Microsecond
)

// ConfigAccessor is the 32-bit config-space register access a Mailbox
// drives. *pcidev.Device implements it; tests supply an in-memory mailbox.
type ConfigAccessor interface {
	ReadConfig32(offset pci.ConfigOffset) (uint32, error)
	WriteConfig32(offset pci.ConfigOffset, val uint32) error
}

// Mailbox drives one device's DOE mailbox. A mutex serializes transactions:
// one Discover or Exchange call is atomic with respect to the device.
type Mailbox struct {
	regs     ConfigAccessor
	base     pci.ConfigOffset
	timeout  time.Duration
	interval time.Duration
	log      logr.Logger

	mu sync.Mutex
}

// Option configures a Mailbox.
type Option func(*Mailbox)

// WithTimeout overrides the poll deadline (default 1s).
func WithTimeout(d time.Duration) Option {
	return func(m *Mailbox) { m.timeout = d }
}

// WithPollInterval overrides the poll interval (default 100µs).
func WithPollInterval(d time.Duration) Option {
	return func(m *Mailbox) { m.interval = d }
}

// WithLogger attaches a logger for transaction tracing.
func WithLogger(log logr.Logger) Option {
	return func(m *Mailbox) { m.log = log }
}

// NewMailbox creates a Mailbox over the DOE capability at base.
func NewMailbox(regs ConfigAccessor, base pci.ConfigOffset, opts ...Option) *Mailbox {
	m := &Mailbox{
		regs:     regs,
		base:     base,
		timeout:  DefaultTimeout,
		interval: DefaultPollInterval,
		log:      logr.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func header(proto pci.DoeProtocolID, totalDwords int) (uint32, uint32) {
	length := uint32(totalDwords) & lengthMask // maxObjectDwords encodes as 0
	return uint32(proto.VendorID) | uint32(proto.DataObjectType)<<16, length
}

// Discover enumerates the protocols the mailbox supports, in the order the
// device reports them via the chained next index.
func (m *Mailbox) Discover() ([]pci.DoeProtocolID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	discovery := pci.DoeProtocolID{VendorID: discoveryVendorID, DataObjectType: discoveryType}

	var protocols []pci.DoeProtocolID
	index := uint8(0)
	for hops := 0; ; hops++ {
		if hops >= maxDiscoveryHops {
			return nil, fmt.Errorf("%w: discovery did not terminate after %d entries",
				pci.ErrDataLoss, maxDiscoveryHops)
		}

		dw0, dw1 := header(discovery, 3)
		payload, err := m.exchangeLocked([]uint32{dw0, dw1, uint32(index)})
		if err != nil {
			return nil, err
		}
		if len(payload) < 1 {
			return nil, fmt.Errorf("%w: discovery response carries no payload", pci.ErrDataLoss)
		}

		entry := payload[0]
		protocols = append(protocols, pci.DoeProtocolID{
			VendorID:       uint16(entry),
			DataObjectType: uint8(entry >> 16),
		})

		next := uint8(entry >> 24)
		if next == 0 {
			break
		}
		index = next
	}

	m.log.V(2).Info("doe discovery complete", "protocols", len(protocols))
	return protocols, nil
}

// Exchange sends one request object for the given protocol and returns the
// response payload with the two header DWords stripped.
func (m *Mailbox) Exchange(proto pci.DoeProtocolID, request []uint32) ([]uint32, error) {
	total := headerDwords + len(request)
	if total > maxObjectDwords {
		return nil, fmt.Errorf("%w: request of %d dwords exceeds the object limit",
			pci.ErrInvalidArgument, len(request))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dw0, dw1 := header(proto, total)
	object := make([]uint32, 0, total)
	object = append(object, dw0, dw1)
	object = append(object, request...)

	return m.exchangeLocked(object)
}

// exchangeLocked runs one full mailbox transaction: abort a busy mailbox,
// push the object, set Go, wait for Ready, pop the response. The caller
// holds m.mu.
func (m *Mailbox) exchangeLocked(object []uint32) ([]uint32, error) {
	if err := m.ensureIdle(); err != nil {
		return nil, err
	}

	for _, dw := range object {
		if err := m.regs.WriteConfig32(m.base+regWriteMailbox, dw); err != nil {
			return nil, err
		}
	}
	if err := m.regs.WriteConfig32(m.base+regControl, ctrlGo); err != nil {
		return nil, err
	}

	if err := m.waitReady(); err != nil {
		return nil, err
	}

	return m.readResponse()
}

// ensureIdle aborts an in-flight transaction and waits for Busy to clear.
func (m *Mailbox) ensureIdle() error {
	status, err := m.regs.ReadConfig32(m.base + regStatus)
	if err != nil {
		return err
	}
	if status&statusBusy == 0 {
		return nil
	}

	m.log.V(2).Info("doe mailbox busy, aborting stale transaction")
	if err := m.regs.WriteConfig32(m.base+regControl, ctrlAbort); err != nil {
		return err
	}

	deadline := time.Now().Add(m.timeout)
	for {
		status, err := m.regs.ReadConfig32(m.base + regStatus)
		if err != nil {
			return err
		}
		if status&statusBusy == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: mailbox still busy after abort", pci.ErrTimeout)
		}
		time.Sleep(m.interval)
	}
}

// waitReady polls until the response is available. The Error status bit
// short-circuits the wait.
func (m *Mailbox) waitReady() error {
	deadline := time.Now().Add(m.timeout)
	for {
		status, err := m.regs.ReadConfig32(m.base + regStatus)
		if err != nil {
			return err
		}
		if status&statusError != 0 {
			return fmt.Errorf("%w: doe status reports an error", pci.ErrIO)
		}
		if status&statusReady != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: no doe response within %v", pci.ErrTimeout, m.timeout)
		}
		time.Sleep(m.interval)
	}
}

// readResponse pops the response object and returns its payload, headers
// stripped.
func (m *Mailbox) readResponse() ([]uint32, error) {
	if _, err := m.regs.ReadConfig32(m.base + regReadMailbox); err != nil { // DW0
		return nil, err
	}
	dw1, err := m.regs.ReadConfig32(m.base + regReadMailbox)
	if err != nil {
		return nil, err
	}

	length := int(dw1 & lengthMask)
	if length == 0 {
		length = maxObjectDwords
	}
	if length < headerDwords {
		return nil, fmt.Errorf("%w: doe object length %d is below the header size", pci.ErrDataLoss, length)
	}

	payload := make([]uint32, length-headerDwords)
	for i := range payload {
		payload[i], err = m.regs.ReadConfig32(m.base + regReadMailbox)
		if err != nil {
			return nil, err
		}
	}
	return payload, nil
}
