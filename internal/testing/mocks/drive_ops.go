package mocks

import (
	"context"

	"github.com/gajzzs/usbkill/internal/platform"
	"github.com/stretchr/testify/mock"
)

// MockDriveOps is a testify mock for platform.DriveOps. Name is not mocked.
type MockDriveOps struct {
	mock.Mock
}

func (*MockDriveOps) Name() string {
	return "mock"
}

func (m *MockDriveOps) Enumerate(ctx context.Context) ([]string, error) {
	called := m.Called(ctx)
	drives, _ := called.Get(0).([]string)
	return drives, called.Error(1)
}

func (m *MockDriveOps) ResolveSerial(ctx context.Context, path string) platform.Serial {
	called := m.Called(ctx, path)
	serial, _ := called.Get(0).(platform.Serial)
	return serial
}

func (m *MockDriveOps) Eject(ctx context.Context, path string) error {
	return m.Called(ctx, path).Error(0)
}
