// Package whitelist loads the serial numbers that are exempt from ejection.
package whitelist

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/gajzzs/usbkill/internal/platform"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Whitelist is an ordered, immutable list of allowed serial numbers.
type Whitelist struct {
	entries []string
}

func New(entries ...string) *Whitelist {
	return &Whitelist{entries: slices.Clone(entries)}
}

// Load reads one serial per line. A missing or unreadable file yields an
// empty whitelist; the failure is logged and never returned.
func Load(afs afero.Fs, path string, log zerolog.Logger) *Whitelist {
	entries, err := read(afs, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn().Str("path", path).Msg("whitelist file not found, starting with an empty whitelist")
		return New()
	case err != nil:
		log.Error().Err(err).Str("path", path).Msg("error loading whitelist")
		return New()
	}

	log.Info().Strs("serials", entries).Msg("whitelist loaded")
	return &Whitelist{entries: entries}
}

func read(afs afero.Fs, path string) ([]string, error) {
	f, err := afs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return entries, nil
}

// Entries returns a copy of the whitelisted serials in file order.
func (w *Whitelist) Entries() []string {
	return slices.Clone(w.entries)
}

func (w *Whitelist) Len() int {
	return len(w.entries)
}

// Allows reports whether a drive with the given serial is exempt from
// ejection. An unresolved serial is only allowed when UnknownSerial itself
// is whitelisted.
func (w *Whitelist) Allows(serial platform.Serial) bool {
	if !serial.OK() {
		return w.Contains(platform.UnknownSerial)
	}
	return w.Contains(serial.Value())
}

func (w *Whitelist) Contains(serial string) bool {
	return slices.Contains(w.entries, serial)
}

// Append adds serial as a new line of the whitelist file, creating it if
// needed. It reports false when the serial was already present.
func Append(afs afero.Fs, path, serial string) (bool, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return false, errors.New("serial must not be empty")
	}

	existing, err := read(afs, path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	if slices.Contains(existing, serial) {
		return false, nil
	}

	f, err := afs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return false, fmt.Errorf("failed to open whitelist: %w", err)
	}
	defer f.Close()

	if err := ensureTrailingNewline(afs, path, f); err != nil {
		return false, err
	}
	if _, err := f.WriteString(serial + "\n"); err != nil {
		return false, fmt.Errorf("failed to write whitelist: %w", err)
	}
	return true, nil
}

func ensureTrailingNewline(afs afero.Fs, path string, f afero.File) error {
	data, err := afero.ReadFile(afs, path)
	if err != nil {
		return fmt.Errorf("failed to read whitelist: %w", err)
	}
	if len(data) == 0 || data[len(data)-1] == '\n' {
		return nil
	}
	if _, err := f.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write whitelist: %w", err)
	}
	return nil
}
