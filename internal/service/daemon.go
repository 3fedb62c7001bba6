package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gajzzs/usbkill/internal/config"
	"github.com/gajzzs/usbkill/internal/device"
	"github.com/gajzzs/usbkill/internal/platform"
	"github.com/gajzzs/usbkill/internal/system"
	"github.com/gajzzs/usbkill/internal/whitelist"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

type State int32

const (
	StateStarting State = iota
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Deps are the collaborators of a Daemon. Fs, Clock and Monitor default
// to the real implementations.
type Deps struct {
	Config  *config.Values
	Ops     platform.DriveOps
	Fs      afero.Fs
	Clock   clockwork.Clock
	Monitor *system.Monitor
	Logger  zerolog.Logger
}

// CycleReport summarises one poll cycle.
type CycleReport struct {
	Err     error
	New     []string
	Results []device.Result
}

// Daemon runs the detect, diff and eject loop. All of its methods are
// meant to be called from a single goroutine; only State is safe to call
// concurrently.
type Daemon struct {
	deps         Deps
	log          zerolog.Logger
	whitelist    *whitelist.Whitelist
	ejector      *device.Ejector
	baseline     device.Snapshot
	state        atomic.Int32
	haveBaseline bool
}

func NewDaemon(deps Deps) *Daemon {
	if deps.Config == nil {
		cfg := config.Defaults()
		deps.Config = &cfg
	}
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Ops == nil {
		deps.Ops = platform.NewDriveOps(platform.Options{Logger: deps.Logger})
	}
	return &Daemon{
		deps: deps,
		log:  deps.Logger.With().Str("component", "daemon").Logger(),
	}
}

func (d *Daemon) State() State {
	return State(d.state.Load())
}

// Baseline returns the mount points the next cycle is diffed against.
func (d *Daemon) Baseline() []string {
	return d.baseline.Paths()
}

func (d *Daemon) Whitelist() *whitelist.Whitelist {
	return d.whitelist
}

// Start loads the whitelist and captures the initial drive snapshot.
// Drives already present at start are never ejected.
func (d *Daemon) Start(ctx context.Context) {
	d.state.Store(int32(StateStarting))
	d.log.Info().Str("platform", d.deps.Ops.Name()).Msg("usb auto-kill switch started")

	if d.deps.Monitor != nil {
		if summary, err := d.deps.Monitor.HostSummary(ctx); err != nil {
			d.log.Warn().Err(err).Msg("could not read host info")
		} else {
			d.log.Info().
				Str("hostname", summary.Hostname).
				Str("os", summary.OS).
				Str("platform_version", summary.PlatformVersion).
				Msg("host")
		}
	}

	d.whitelist = whitelist.Load(d.deps.Fs, d.deps.Config.WhitelistFile, d.log)
	d.ejector = device.NewEjector(d.deps.Ops, d.whitelist, d.deps.Logger)

	drives, err := d.deps.Ops.Enumerate(ctx)
	if err != nil {
		d.log.Error().Err(err).Msg("initial drive scan failed, next successful scan becomes the baseline")
		return
	}
	d.setBaseline(device.NewSnapshot(drives))
	d.log.Info().Strs("drives", d.baseline.Paths()).Msg("initial drives")
}

func (d *Daemon) setBaseline(s device.Snapshot) {
	d.baseline = s
	d.haveBaseline = true
}

// Poll runs one cycle: enumerate, diff against the baseline, eject every
// new drive, then make the enumeration the new baseline. It never panics.
func (d *Daemon) Poll(ctx context.Context) (report CycleReport) {
	if d.ejector == nil {
		d.Start(ctx)
	}
	d.state.Store(int32(StatePolling))

	defer func() {
		if r := recover(); r != nil {
			report.Err = fmt.Errorf("panic in poll cycle: %v", r)
			d.log.Error().Err(report.Err).Msg("unexpected error in main loop")
		}
	}()

	// Shutdown is honoured between operations only; a started scan or
	// eject runs to completion.
	work := context.WithoutCancel(ctx)

	drives, err := d.deps.Ops.Enumerate(work)
	if err != nil {
		report.Err = err
		d.log.Error().Err(err).Msg("drive scan failed, keeping previous baseline")
		return report
	}
	current := device.NewSnapshot(drives)

	if !d.haveBaseline {
		d.setBaseline(current)
		d.log.Info().Strs("drives", current.Paths()).Msg("baseline established")
		return report
	}

	report.New = current.NewSince(d.baseline)
	if len(report.New) == 0 {
		d.log.Debug().Msg("no new drives detected")
	} else {
		d.log.Info().Strs("drives", report.New).Msg("new drives detected")
		for i, path := range report.New {
			if ctx.Err() != nil {
				d.log.Info().Strs("drives", report.New[i:]).Msg("shutdown requested, remaining drives not evaluated")
				break
			}
			res := d.ejector.Eject(work, path)
			report.Results = append(report.Results, res)
			if !res.Ejected() {
				d.log.Warn().Str("path", path).Str("outcome", res.Outcome.String()).Msg("drive left mounted")
			}
		}
	}

	d.setBaseline(current)
	return report
}

// Run polls every configured interval until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) {
	d.Start(ctx)
	defer d.stop()

	interval := d.deps.Config.PollInterval()
	d.log.Info().Dur("interval", interval).Msg("polling for new drives")

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.deps.Clock.After(interval):
		}
		d.Poll(ctx)
	}
}

func (d *Daemon) stop() {
	d.state.Store(int32(StateStopped))
	d.log.Info().Msg("usb auto-kill switch stopped")
}
