//go:build windows
// +build windows

package platform

import (
	"strings"

	"golang.org/x/sys/windows"
)

func newDriveOps(opts Options) DriveOps {
	return NewWindowsOps(opts, isRemovableVolume)
}

func isRemovableVolume(mountpoint string) bool {
	if mountpoint == "" {
		return false
	}
	root := mountpoint
	if !strings.HasSuffix(root, `\`) {
		root += `\`
	}
	rootPtr, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return false
	}
	return windows.GetDriveType(rootPtr) == windows.DRIVE_REMOVABLE
}
