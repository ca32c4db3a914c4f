//go:build !darwin

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "flowmart-data"
		}
	}
	return filepath.Join(dir, "flowmart")
}

func configDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "flowmart")
}

// fileStore keeps settings in $XDG_CONFIG_HOME/flowmart/config.json, one
// object per section:
//
//	{"server": {"port": 4000}, "catalog": {"source": "sqlite"}}
type fileStore struct {
	path     string
	sections map[string]map[string]any
}

func newPlatformStore() Store {
	s := &fileStore{
		path:     filepath.Join(configDir(), "config.json"),
		sections: make(map[string]map[string]any),
	}
	s.load()
	return s
}

func (s *fileStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("config file unreadable, using defaults", "path", s.path, "error", err)
		}
		return
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	sections := make(map[string]map[string]any)
	if err := dec.Decode(&sections); err != nil {
		slog.Warn("config file malformed, using defaults", "path", s.path, "error", err)
		return
	}
	if sections == nil {
		return
	}
	for section, fields := range sections {
		for field := range fields {
			if _, ok := lookupSpec(section + "." + field); !ok {
				slog.Warn("ignoring unknown config key", "path", s.path, "key", section+"."+field)
			}
		}
	}
	s.sections = sections
}

func splitKey(key string) (section, field string, err error) {
	section, field, ok := strings.Cut(key, ".")
	if !ok || section == "" || field == "" {
		return "", "", fmt.Errorf("config key %q is not of the form section.field", key)
	}
	return section, field, nil
}

func (s *fileStore) Get(key string) (string, bool, error) {
	section, field, err := splitKey(key)
	if err != nil {
		return "", false, err
	}
	v, ok := s.sections[section][field]
	if !ok {
		return "", false, nil
	}
	switch val := v.(type) {
	case string:
		return val, true, nil
	case json.Number:
		return val.String(), true, nil
	case bool:
		return strconv.FormatBool(val), true, nil
	default:
		return "", true, fmt.Errorf("%s: expected a scalar, got %T", key, v)
	}
}

// Set writes integer keys as JSON numbers and everything else as strings.
func (s *fileStore) Set(key, val string) error {
	section, field, err := splitKey(key)
	if err != nil {
		return err
	}
	var v any = val
	if spec, ok := lookupSpec(key); ok && spec.typ == kInt {
		if _, err := strconv.Atoi(val); err != nil {
			return fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		v = json.Number(val)
	}
	if s.sections[section] == nil {
		s.sections[section] = make(map[string]any)
	}
	s.sections[section][field] = v
	return s.save()
}

func (s *fileStore) Unset(key string) error {
	section, field, err := splitKey(key)
	if err != nil {
		return err
	}
	if _, ok := s.sections[section][field]; !ok {
		return nil
	}
	delete(s.sections[section], field)
	if len(s.sections[section]) == 0 {
		delete(s.sections, section)
	}
	return s.save()
}

// save replaces the file atomically so a crash never leaves half a config.
func (s *fileStore) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(s.sections, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}
