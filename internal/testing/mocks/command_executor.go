package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockCommandExecutor is a testify mock for command.Executor.
//
// Example:
//
//	m := &MockCommandExecutor{}
//	m.On("Output", mock.Anything, "udevadm", []string{"info", "--name", "/dev/sdb1"}).
//		Return([]byte("E: ID_SERIAL=abc\n"), nil)
type MockCommandExecutor struct {
	mock.Mock
}

func (m *MockCommandExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	called := m.Called(ctx, name, args)
	out, _ := called.Get(0).([]byte)
	return out, called.Error(1)
}

func (m *MockCommandExecutor) CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	called := m.Called(ctx, name, args)
	out, _ := called.Get(0).([]byte)
	return out, called.Error(1)
}
