package platform

import (
	"bufio"
	"bytes"
	"strings"
)

// ParseUdevSerial extracts ID_SERIAL from `udevadm info` output. Property
// lines look like "E: ID_SERIAL=SanDisk_Cruzer_4C530001".
func ParseUdevSerial(out []byte) (string, error) {
	return parseKeyValue(out, "ID_SERIAL", "E: ")
}

// ParseWmicSerial extracts SerialNumber from `wmic ... /value` output.
func ParseWmicSerial(out []byte) (string, error) {
	return parseKeyValue(out, "SerialNumber", "")
}

func parseKeyValue(out []byte, key, linePrefix string) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, linePrefix)

		k, v, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(k) != key {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			return "", ErrSerialNotFound
		}
		return v, nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", ErrSerialNotFound
}
