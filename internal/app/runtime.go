package app

import (
	"io"

	"github.com/gajzzs/usbkill/internal/command"
	"github.com/gajzzs/usbkill/internal/config"
	"github.com/gajzzs/usbkill/internal/logging"
	"github.com/gajzzs/usbkill/internal/platform"
	"github.com/gajzzs/usbkill/internal/service"
	"github.com/gajzzs/usbkill/internal/system"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Options are shared by every command. Zero fields use the real system.
type Options struct {
	Fs         afero.Fs
	Ops        platform.DriveOps
	Monitor    *system.Monitor
	ConfigPath string
}

func (o *Options) fs() afero.Fs {
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	return o.Fs
}

func (o *Options) monitor() *system.Monitor {
	if o.Monitor == nil {
		o.Monitor = system.NewMonitor()
	}
	return o.Monitor
}

func (o *Options) loadConfig() (*config.Values, error) {
	return config.Load(o.fs(), config.Path(o.ConfigPath))
}

func (o *Options) driveOps(cfg *config.Values, log zerolog.Logger) platform.DriveOps {
	if o.Ops != nil {
		return o.Ops
	}
	return platform.NewDriveOps(platform.Options{
		Executor:      &command.RealExecutor{Timeout: cfg.CommandTimeout()},
		MediaPrefixes: cfg.MediaPrefixes,
		Logger:        log,
	})
}

// newDaemon wires the poll loop with file logging. The closer releases the
// log file.
func (o *Options) newDaemon() (*service.Daemon, zerolog.Logger, io.Closer, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}

	logger, closer, err := logging.New(cfg)
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}

	d := service.NewDaemon(service.Deps{
		Config:  cfg,
		Ops:     o.driveOps(cfg, logger),
		Fs:      o.fs(),
		Monitor: o.monitor(),
		Logger:  logger,
	})
	return d, logger, closer, nil
}

// consoleLogger is used by one-shot commands that should not write to the
// daemon's log file.
func consoleLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).
		Level(zerolog.WarnLevel).
		With().Timestamp().Logger()
}
