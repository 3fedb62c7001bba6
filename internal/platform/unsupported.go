package platform

import (
	"context"
	"fmt"
)

type unsupportedDriveOps struct {
	goos string
}

// NewUnsupportedOps returns a variant that fails every operation.
func NewUnsupportedOps(goos string) DriveOps {
	return unsupportedDriveOps{goos: goos}
}

func (u unsupportedDriveOps) Name() string {
	return "unsupported(" + u.goos + ")"
}

func (u unsupportedDriveOps) Enumerate(context.Context) ([]string, error) {
	return nil, fmt.Errorf("enumerate drives on %s: %w", u.goos, ErrUnsupported)
}

func (u unsupportedDriveOps) ResolveSerial(context.Context, string) Serial {
	return Unresolved(fmt.Errorf("resolve serial on %s: %w", u.goos, ErrUnsupported))
}

func (u unsupportedDriveOps) Eject(_ context.Context, path string) error {
	return &EjectError{Path: path, Err: fmt.Errorf("%s: %w", u.goos, ErrUnsupported)}
}
