//go:build linux
// +build linux

package platform

func newDriveOps(opts Options) DriveOps {
	return NewLinuxOps(opts)
}
