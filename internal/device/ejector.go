package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/gajzzs/usbkill/internal/platform"
	"github.com/gajzzs/usbkill/internal/whitelist"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Outcome int

const (
	Skipped Outcome = iota
	Ejected
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Ejected:
		return "ejected"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result records one ejection decision.
type Result struct {
	Err     error
	Serial  platform.Serial
	ID      string
	Path    string
	Outcome Outcome
}

func (r Result) Ejected() bool {
	return r.Outcome == Ejected
}

// Ejector dismounts drives whose serial is not whitelisted.
type Ejector struct {
	ops       platform.DriveOps
	whitelist *whitelist.Whitelist
	log       zerolog.Logger
}

func NewEjector(ops platform.DriveOps, wl *whitelist.Whitelist, log zerolog.Logger) *Ejector {
	if wl == nil {
		wl = whitelist.New()
	}
	return &Ejector{ops: ops, whitelist: wl, log: log}
}

// Eject never panics or returns an error; every failure is folded into the
// Result and logged.
func (e *Ejector) Eject(ctx context.Context, path string) (res Result) {
	res = Result{ID: uuid.NewString(), Path: path}
	log := e.log.With().Str("event_id", res.ID).Str("path", path).Logger()

	defer func() {
		if r := recover(); r != nil {
			res.Outcome = Failed
			res.Err = fmt.Errorf("panic while ejecting %s: %v", path, r)
			log.Error().Err(res.Err).Msg("unexpected error during ejection")
		}
	}()

	res.Serial = e.ops.ResolveSerial(ctx, path)
	if !res.Serial.OK() {
		log.Warn().Err(res.Serial.Reason()).Msg("could not resolve serial number")
	}

	if e.whitelist.Allows(res.Serial) {
		res.Outcome = Skipped
		log.Info().Str("serial", res.Serial.String()).Msg("drive is whitelisted, skipping ejection")
		return res
	}

	log.Info().Str("serial", res.Serial.String()).Str("platform", e.ops.Name()).Msg("attempting to eject drive")

	if err := e.ops.Eject(ctx, path); err != nil {
		res.Outcome = Failed
		res.Err = err
		ev := log.Error().Err(err)
		var ejectErr *platform.EjectError
		if errors.As(err, &ejectErr) && ejectErr.Output != "" {
			ev = ev.Str("output", ejectErr.Output)
		}
		ev.Msg("error ejecting drive")
		return res
	}

	res.Outcome = Ejected
	log.Info().Msg("successfully ejected drive")
	return res
}
