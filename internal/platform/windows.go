package platform

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// RemovableCheck reports whether the volume at a mount point is removable
// media.
type RemovableCheck func(mountpoint string) bool

type windowsDriveOps struct {
	removable RemovableCheck
	opts      Options
}

// NewWindowsOps returns the Windows variant: removable drives are volumes
// of removable drive type, serials come from wmic and drives are dismounted
// with the Dismount-Volume cmdlet.
func NewWindowsOps(opts Options, removable RemovableCheck) DriveOps {
	if removable == nil {
		removable = func(string) bool { return false }
	}
	return &windowsDriveOps{opts: opts.withDefaults(), removable: removable}
}

func (*windowsDriveOps) Name() string {
	return "windows"
}

func (w *windowsDriveOps) Enumerate(ctx context.Context) ([]string, error) {
	partitions, err := w.opts.Partitions(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var drives []string
	for _, partition := range partitions {
		if !slices.Contains(partition.Opts, "removable") && !w.removable(partition.Mountpoint) {
			continue
		}
		if seen[partition.Mountpoint] {
			continue
		}
		seen[partition.Mountpoint] = true
		drives = append(drives, partition.Mountpoint)
	}
	return drives, nil
}

// ResolveSerial queries the disk drive whose index is the first character
// of the path.
func (w *windowsDriveOps) ResolveSerial(ctx context.Context, path string) Serial {
	if path == "" {
		return Unresolved(ErrInvalidPath)
	}

	index := path[:1]
	out, err := w.opts.Executor.Output(ctx,
		"wmic", "diskdrive", "where", fmt.Sprintf("Index='%s'", index), "get", "SerialNumber", "/value")
	if err != nil {
		return Unresolved(fmt.Errorf("wmic diskdrive %s: %w", index, err))
	}

	serial, err := ParseWmicSerial(out)
	if err != nil {
		return Unresolved(fmt.Errorf("wmic diskdrive %s: %w", index, err))
	}

	w.opts.Logger.Debug().Str("path", path).Str("serial", serial).Msg("resolved serial")
	return Resolved(serial)
}

func (w *windowsDriveOps) Eject(ctx context.Context, path string) error {
	if path == "" {
		return ErrInvalidPath
	}
	letter := strings.ToUpper(path[:1]) + ":"
	out, err := w.opts.Executor.CombinedOutput(ctx, "powershell", "Dismount-Volume", "-DriveLetter", letter)
	if err != nil {
		return &EjectError{Path: path, Output: strings.TrimSpace(string(out)), Err: err}
	}
	return nil
}
