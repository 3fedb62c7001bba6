package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/gajzzs/usbkill/internal/command"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// UnknownSerial is the whitelist key of a drive whose serial could not be
// resolved.
const UnknownSerial = "UNKNOWN"

var (
	ErrUnsupported    = errors.New("unsupported platform")
	ErrSerialNotFound = errors.New("serial number not found in command output")
	ErrInvalidPath    = errors.New("invalid drive path")
)

// DriveOps provides the removable drive operations of one OS family.
type DriveOps interface {
	// Name identifies the variant in logs.
	Name() string
	// Enumerate lists mount points of the currently mounted removable drives.
	Enumerate(ctx context.Context) ([]string, error)
	// ResolveSerial never fails; failures come back as an unresolved Serial.
	ResolveSerial(ctx context.Context, path string) Serial
	// Eject dismounts the drive mounted at path.
	Eject(ctx context.Context, path string) error
}

// Serial is the outcome of serial resolution: either a resolved value or
// the reason resolution failed.
type Serial struct {
	reason error
	value  string
}

func Resolved(value string) Serial {
	return Serial{value: value}
}

func Unresolved(reason error) Serial {
	if reason == nil {
		reason = ErrSerialNotFound
	}
	return Serial{reason: reason}
}

// OK reports whether the serial was resolved.
func (s Serial) OK() bool {
	return s.reason == nil
}

func (s Serial) Value() string {
	return s.value
}

func (s Serial) Reason() error {
	return s.reason
}

// String returns the serial, or UnknownSerial when unresolved.
func (s Serial) String() string {
	if !s.OK() {
		return UnknownSerial
	}
	return s.value
}

// EjectError carries the captured output of a failed dismount command.
type EjectError struct {
	Err    error
	Path   string
	Output string
}

func (e *EjectError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("eject %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("eject %s: %v: %s", e.Path, e.Err, e.Output)
}

func (e *EjectError) Unwrap() error {
	return e.Err
}

// PartitionLister reads the OS mount table.
type PartitionLister func(ctx context.Context) ([]disk.PartitionStat, error)

// SystemPartitions lists physical partitions through gopsutil.
func SystemPartitions(ctx context.Context) ([]disk.PartitionStat, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}
	return parts, nil
}

// Options configures a DriveOps variant. Zero fields get system defaults.
type Options struct {
	Executor      command.Executor
	Partitions    PartitionLister
	Logger        zerolog.Logger
	MediaPrefixes []string
}

func (o Options) withDefaults() Options {
	if o.Executor == nil {
		o.Executor = &command.RealExecutor{}
	}
	if o.Partitions == nil {
		o.Partitions = SystemPartitions
	}
	if len(o.MediaPrefixes) == 0 {
		o.MediaPrefixes = []string{"/media"}
	}
	return o
}

// NewDriveOps creates the variant for the running OS.
func NewDriveOps(opts Options) DriveOps {
	return newDriveOps(opts.withDefaults())
}
