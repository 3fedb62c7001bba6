package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const (
	CfgEnv = "USBKILL_CFG"
	CfgDir = "/etc/usbkill"
)

var DefaultPath = filepath.Join(CfgDir, "config.toml")

// Values is fixed once the process starts; nothing reloads it.
type Values struct {
	LogFile               string   `toml:"log_file" validate:"required"`
	LogLevel              string   `toml:"log_level" validate:"oneof=trace debug info warn error"`
	WhitelistFile         string   `toml:"whitelist_file" validate:"required"`
	MediaPrefixes         []string `toml:"media_prefixes,multiline" validate:"min=1,dive,required,startswith=/"`
	PollIntervalSeconds   int      `toml:"poll_interval_seconds" validate:"min=1"`
	CommandTimeoutSeconds int      `toml:"command_timeout_seconds" validate:"min=0"`
	LogMaxSizeMB          int      `toml:"log_max_size_mb" validate:"min=1"`
	// LogMaxBackups of 0 keeps every rotated file.
	LogMaxBackups         int      `toml:"log_max_backups" validate:"min=0"`
	LogConsole            bool     `toml:"log_console"`
}

// Defaults returns a fresh copy of the built-in configuration.
func Defaults() Values {
	return Values{
		PollIntervalSeconds: 600,
		LogFile:             "usb_killer.log",
		LogLevel:            "info",
		LogMaxSizeMB:        100,
		WhitelistFile:       "usb_whitelist.txt",
		MediaPrefixes:       []string{"/media"},
	}
}

// Path picks the config file: an explicit path, then $USBKILL_CFG, then
// DefaultPath.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(CfgEnv); env != "" {
		return env
	}
	return DefaultPath
}

// Load reads path over the defaults. A missing file is not an error.
// Relative file paths in the config are resolved against the config
// file's directory.
func Load(afs afero.Fs, path string) (*Values, error) {
	vals := Defaults()

	data, err := afero.ReadFile(afs, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &vals, vals.Validate()
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := toml.Unmarshal(data, &vals); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	vals.LogFile = resolve(dir, vals.LogFile)
	vals.WhitelistFile = resolve(dir, vals.WhitelistFile)

	if err := vals.Validate(); err != nil {
		return nil, err
	}
	return &vals, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func (v *Values) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (v *Values) PollInterval() time.Duration {
	return time.Duration(v.PollIntervalSeconds) * time.Second
}

func (v *Values) CommandTimeout() time.Duration {
	return time.Duration(v.CommandTimeoutSeconds) * time.Second
}

func (v *Values) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(v.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Save writes the values as TOML, creating the parent directory.
func Save(afs afero.Fs, path string, v *Values) error {
	data, err := toml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := afs.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := afero.WriteFile(afs, path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
