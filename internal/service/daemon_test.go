package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gajzzs/usbkill/internal/config"
	"github.com/gajzzs/usbkill/internal/device"
	"github.com/gajzzs/usbkill/internal/platform"
	"github.com/gajzzs/usbkill/internal/testing/mocks"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// syncBuffer lets the test read log output written by the daemon goroutine.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestDaemon(t *testing.T, ops platform.DriveOps, serials string) (*Daemon, *syncBuffer, *clockwork.FakeClock) {
	t.Helper()

	cfg := config.Defaults()
	cfg.WhitelistFile = "/etc/usbkill/usb_whitelist.txt"
	cfg.PollIntervalSeconds = 600

	afs := afero.NewMemMapFs()
	if serials != "" {
		require.NoError(t, afero.WriteFile(afs, cfg.WhitelistFile, []byte(serials), 0o600))
	}

	logs := &syncBuffer{}
	clock := clockwork.NewFakeClock()
	d := NewDaemon(Deps{
		Config: &cfg,
		Ops:    ops,
		Fs:     afs,
		Clock:  clock,
		Logger: zerolog.New(logs).Level(zerolog.DebugLevel),
	})
	return d, logs, clock
}

func TestStartCapturesInitialSnapshot(t *testing.T) {
	t.Parallel()

	ops := &mocks.MockDriveOps{}
	ops.On("Enumerate", mock.Anything).Return([]string{"/media/A", "/media/B"}, nil)

	d, logs, _ := newTestDaemon(t, ops, "SN1\nSN2\n")
	d.Start(context.Background())

	assert.Equal(t, StateStarting, d.State())
	assert.Equal(t, []string{"/media/A", "/media/B"}, d.Baseline())
	assert.Equal(t, []string{"SN1", "SN2"}, d.Whitelist().Entries())
	assert.Contains(t, logs.String(), "initial drives")
	ops.AssertNotCalled(t, "Eject", mock.Anything, mock.Anything)
}

func TestPollEjectsOnlyNewDrives(t *testing.T) {
	t.Parallel()

	ops := &mocks.MockDriveOps{}
	ops.On("Enumerate", mock.Anything).Return([]string{"/media/A", "/media/B"}, nil).Once()
	ops.On("Enumerate", mock.Anything).Return([]string{"/media/A", "/media/B", "/media/C"}, nil).Once()
	ops.On("ResolveSerial", mock.Anything, "/media/C").Return(platform.Resolved("EVIL"))
	ops.On("Eject", mock.Anything, "/media/C").Return(nil)

	d, _, _ := newTestDaemon(t, ops, "")
	ctx := context.Background()
	d.Start(ctx)

	report := d.Poll(ctx)
	require.NoError(t, report.Err)
	assert.Equal(t, []string{"/media/C"}, report.New)
	require.Len(t, report.Results, 1)
	assert.Equal(t, device.Ejected, report.Results[0].Outcome)
	assert.Equal(t, StatePolling, d.State())
	assert.Equal(t, []string{"/media/A", "/media/B", "/media/C"}, d.Baseline())
	ops.AssertExpectations(t)
}

func TestPollUnchangedSnapshotEjectsNothing(t *testing.T) {
	t.Parallel()

	ops := &mocks.MockDriveOps{}
	ops.On("Enumerate", mock.Anything).Return([]string{"/media/A", "/media/B"}, nil)

	d, _, _ := newTestDaemon(t, ops, "")
	ctx := context.Background()
	d.Start(ctx)

	report := d.Poll(ctx)
	require.NoError(t, report.Err)
	assert.Empty(t, report.New)
	assert.Empty(t, report.Results)
	ops.AssertNotCalled(t, "ResolveSerial", mock.Anything, mock.Anything)
	ops.AssertNotCalled(t, "Eject", mock.Anything, mock.Anything)
}

func TestPollWhitelistedDriveNeverDismounted(t *testing.T) {
	t.Parallel()

	ops := &mocks.MockDriveOps{}
	ops.On("Enumerate", mock.Anything).Return([]string{}, nil).Once()
	ops.On("Enumerate", mock.Anything).Return([]string{"/media/usb1"}, nil).Once()
	ops.On("ResolveSerial", mock.Anything, "/media/usb1").Return(platform.Resolved("SN2"))

	d, _, _ := newTestDaemon(t, ops, "SN1\nSN2\n")
	ctx := context.Background()
	d.Start(ctx)

	report := d.Poll(ctx)
	require.Len(t, report.Results, 1)
	assert.Equal(t, device.Skipped, report.Results[0].Outcome)
	ops.AssertNotCalled(t, "Eject", mock.Anything, mock.Anything)
}

func TestPollEjectFailureDoesNotHaltLoop(t *testing.T) {
	t.Parallel()

	ops := &mocks.MockDriveOps{}
	ops.On("Enumerate", mock.Anything).Return([]string{}, nil).Once()
	ops.On("Enumerate", mock.Anything).Return([]string{"/media/usb1", "/media/usb2"}, nil).Once()
	ops.On("ResolveSerial", mock.Anything, mock.Anything).Return(platform.Resolved("EVIL"))
	ops.On("Eject", mock.Anything, "/media/usb1").
		Return(&platform.EjectError{Path: "/media/usb1", Output: "target is busy", Err: errors.New("exit status 32")})
	ops.On("Eject", mock.Anything, "/media/usb2").Return(nil)

	d, logs, _ := newTestDaemon(t, ops, "")
	ctx := context.Background()
	d.Start(ctx)

	report := d.Poll(ctx)
	require.Len(t, report.Results, 2)
	assert.Equal(t, device.Failed, report.Results[0].Outcome)
	assert.Equal(t, device.Ejected, report.Results[1].Outcome)
	assert.Equal(t, []string{"/media/usb1", "/media/usb2"}, d.Baseline())
	assert.Contains(t, logs.String(), "target is busy")
}

func TestPollReappearingDriveIsReevaluated(t *testing.T) {
	t.Parallel()

	ops := &mocks.MockDriveOps{}
	ops.On("Enumerate", mock.Anything).Return([]string{}, nil).Once()
	ops.On("Enumerate", mock.Anything).Return([]string{"/media/usb1"}, nil).Once()
	ops.On("Enumerate", mock.Anything).Return([]string{}, nil).Once()
	ops.On("Enumerate", mock.Anything).Return([]string{"/media/usb1"}, nil).Once()
	ops.On("ResolveSerial", mock.Anything, "/media/usb1").Return(platform.Resolved("EVIL"))
	ops.On("Eject", mock.Anything, "/media/usb1").Return(nil).Twice()

	d, _, _ := newTestDaemon(t, ops, "")
	ctx := context.Background()
	d.Start(ctx)

	d.Poll(ctx)
	d.Poll(ctx)
	d.Poll(ctx)

	ops.AssertNumberOfCalls(t, "Eject", 2)
}

func TestPollEnumerationErrorKeepsBaseline(t *testing.T) {
	t.Parallel()

	ops := &mocks.MockDriveOps{}
	ops.On("Enumerate", mock.Anything).Return([]string{"/media/A"}, nil).Once()
	ops.On("Enumerate", mock.Anything).Return(nil, errors.New("mtab unreadable")).Once()

	d, logs, _ := newTestDaemon(t, ops, "")
	ctx := context.Background()
	d.Start(ctx)

	report := d.Poll(ctx)
	require.Error(t, report.Err)
	assert.Equal(t, []string{"/media/A"}, d.Baseline())
	assert.Contains(t, logs.String(), "mtab unreadable")
}

func TestInitialScanFailureDefersBaseline(t *testing.T) {
	t.Parallel()

	ops := &mocks.MockDriveOps{}
	ops.On("Enumerate", mock.Anything).Return(nil, errors.New("not ready")).Once()
	ops.On("Enumerate", mock.Anything).Return([]string{"/media/A"}, nil).Once()
	ops.On("Enumerate", mock.Anything).Return([]string{"/media/A", "/media/B"}, nil).Once()
	ops.On("ResolveSerial", mock.Anything, "/media/B").Return(platform.Resolved("EVIL"))
	ops.On("Eject", mock.Anything, "/media/B").Return(nil)

	d, _, _ := newTestDaemon(t, ops, "")
	ctx := context.Background()
	d.Start(ctx)

	first := d.Poll(ctx)
	assert.Empty(t, first.New)
	assert.Equal(t, []string{"/media/A"}, d.Baseline())

	second := d.Poll(ctx)
	assert.Equal(t, []string{"/media/B"}, second.New)
	ops.AssertNotCalled(t, "Eject", mock.Anything, "/media/A")
}

func TestPollRecoversPanic(t *testing.T) {
	t.Parallel()

	ops := &mocks.MockDriveOps{}
	ops.On("Enumerate", mock.Anything).Return([]string{}, nil).Once()
	ops.On("Enumerate", mock.Anything).Panic("kaboom").Once()

	d, _, _ := newTestDaemon(t, ops, "")
	ctx := context.Background()
	d.Start(ctx)

	var report CycleReport
	require.NotPanics(t, func() { report = d.Poll(ctx) })
	assert.ErrorContains(t, report.Err, "kaboom")
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	ejected := make(chan struct{})
	ops := &mocks.MockDriveOps{}
	ops.On("Enumerate", mock.Anything).Return([]string{}, nil).Once()
	ops.On("Enumerate", mock.Anything).Return([]string{"/media/usb1"}, nil)
	ops.On("ResolveSerial", mock.Anything, "/media/usb1").Return(platform.Resolved("0701ABCD"))
	ops.On("Eject", mock.Anything, "/media/usb1").Return(nil).Once().Run(func(mock.Arguments) {
		close(ejected)
	})

	d, logs, clock := newTestDaemon(t, ops, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(10 * time.Minute)

	select {
	case <-ejected:
	case <-time.After(5 * time.Second):
		t.Fatal("drive was not ejected")
	}

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}

	assert.Equal(t, StateStopped, d.State())
	assert.Equal(t, []string{"/media/usb1"}, d.Baseline())
	assert.Contains(t, logs.String(), "successfully ejected drive")
	assert.Contains(t, logs.String(), "usb auto-kill switch stopped")
}

func TestPollFinishesEjectStartedBeforeShutdown(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ejectCtxErr error
	ops := &mocks.MockDriveOps{}
	ops.On("Enumerate", mock.Anything).Return([]string{}, nil).Once()
	ops.On("Enumerate", mock.Anything).Return([]string{"/media/usb1", "/media/usb2"}, nil).Once()
	ops.On("ResolveSerial", mock.Anything, "/media/usb1").Return(platform.Resolved("EVIL"))
	ops.On("Eject", mock.Anything, "/media/usb1").Return(nil).Once().Run(func(args mock.Arguments) {
		// SIGTERM arrives while umount is still running.
		cancel()
		ejectCtxErr = args.Get(0).(context.Context).Err()
	})

	d, logs, _ := newTestDaemon(t, ops, "")
	d.Start(context.Background())

	report := d.Poll(ctx)
	require.NoError(t, report.Err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, device.Ejected, report.Results[0].Outcome)
	assert.NoError(t, ejectCtxErr)
	assert.Contains(t, logs.String(), "remaining drives not evaluated")
	assert.NotContains(t, logs.String(), "error ejecting drive")
	ops.AssertNotCalled(t, "ResolveSerial", mock.Anything, "/media/usb2")
	ops.AssertNotCalled(t, "Eject", mock.Anything, "/media/usb2")
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "polling", StatePolling.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "State(9)", State(9).String())
}
