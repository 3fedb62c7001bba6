//go:build !linux && !windows
// +build !linux,!windows

package platform

import "runtime"

func newDriveOps(Options) DriveOps {
	return NewUnsupportedOps(runtime.GOOS)
}
