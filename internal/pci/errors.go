package pci

import "errors"

// Error taxonomy shared by every operation in the library. Callers classify
// failures with errors.Is; wrapped messages carry the detail.
var (
	// ErrNotFound marks a missing sysfs entry, BAR, or capability.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument marks a malformed address, a nil or empty buffer,
	// or a BAR index outside 0-5.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPermissionDenied marks a file that could not be opened even
	// read-only, or a write through a read-only descriptor.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrIO marks a short read/write, an mmap failure, or the DOE Error
	// status bit.
	ErrIO = errors.New("i/o error")
	// ErrOutOfRange marks a BAR access beyond the mapped size.
	ErrOutOfRange = errors.New("out of range")
	// ErrTimeout marks a DOE poll deadline that expired.
	ErrTimeout = errors.New("timeout")
	// ErrDataLoss marks a truncated or malformed DOE response.
	ErrDataLoss = errors.New("truncated or malformed response")
)
