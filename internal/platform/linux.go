package platform

import (
	"context"
	"fmt"
	"strings"
)

type linuxDriveOps struct {
	opts Options
}

// NewLinuxOps returns the Linux variant: removable drives are mounted
// partitions under one of the media prefixes, serials come from udevadm
// and drives are dismounted with umount.
func NewLinuxOps(opts Options) DriveOps {
	return &linuxDriveOps{opts: opts.withDefaults()}
}

func (*linuxDriveOps) Name() string {
	return "linux"
}

func (l *linuxDriveOps) Enumerate(ctx context.Context) ([]string, error) {
	partitions, err := l.opts.Partitions(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var drives []string
	for _, partition := range partitions {
		if partition.Fstype == "" || !l.isMediaPath(partition.Mountpoint) {
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

func (l *linuxDriveOps) isMediaPath(mountpoint string) bool {
	for _, prefix := range l.opts.MediaPrefixes {
		if strings.HasPrefix(mountpoint, prefix) {
			return true
		}
	}
	return false
}

func (l *linuxDriveOps) ResolveSerial(ctx context.Context, path string) Serial {
	if path == "" {
		return Unresolved(ErrInvalidPath)
	}

	target := path
	if dev := l.backingDevice(ctx, path); dev != "" {
		target = dev
	}

	out, err := l.opts.Executor.Output(ctx, "udevadm", "info", "--name", target)
	if err != nil {
		return Unresolved(fmt.Errorf("udevadm info %s: %w", target, err))
	}

	serial, err := ParseUdevSerial(out)
	if err != nil {
		return Unresolved(fmt.Errorf("udevadm info %s: %w", target, err))
	}

	l.opts.Logger.Debug().Str("path", path).Str("device", target).Str("serial", serial).Msg("resolved serial")
	return Resolved(serial)
}

// backingDevice maps a mount point to its /dev node, or "" when the mount
// table does not know it.
func (l *linuxDriveOps) backingDevice(ctx context.Context, mountpoint string) string {
	partitions, err := l.opts.Partitions(ctx)
	if err != nil {
		l.opts.Logger.Debug().Err(err).Msg("mount table unavailable, querying path directly")
		return ""
	}
	for _, partition := range partitions {
		if partition.Mountpoint == mountpoint && strings.HasPrefix(partition.Device, "/dev/") {
			return partition.Device
		}
	}
	return ""
}

func (l *linuxDriveOps) Eject(ctx context.Context, path string) error {
	if path == "" {
		return ErrInvalidPath
	}
	out, err := l.opts.Executor.CombinedOutput(ctx, "umount", path)
	if err != nil {
		return &EjectError{Path: path, Output: strings.TrimSpace(string(out)), Err: err}
	}
	return nil
}
