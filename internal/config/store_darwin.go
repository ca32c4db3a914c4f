//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const defaultsDomain = "com.flowmart.app"

func defaultDataDir() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, "Library", "Application Support", "flowmart")
	}
	return "flowmart-data"
}

// defaultsStore keeps settings in the com.flowmart.app defaults domain under
// their dotted key, e.g. `defaults read com.flowmart.app catalog.source`.
type defaultsStore struct {
	domain string
}

func newPlatformStore() Store {
	return &defaultsStore{domain: defaultsDomain}
}

// run executes a defaults subcommand. missing reports the exit status 1
// that defaults uses for an absent key or domain.
func (s *defaultsStore) run(args ...string) (out string, missing bool, err error) {
	b, err := exec.Command("defaults", args...).CombinedOutput()
	out = strings.TrimSpace(string(b))
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", true, nil
		}
		return "", false, fmt.Errorf("defaults %s: %w: %s", args[0], err, out)
	}
	return out, false, nil
}

func (s *defaultsStore) Get(key string) (string, bool, error) {
	out, missing, err := s.run("read", s.domain, key)
	if err != nil || missing {
		return "", false, err
	}
	return out, true, nil
}

// Set writes integer keys with -int so other tools see a number.
func (s *defaultsStore) Set(key, val string) error {
	typ := "-string"
	if spec, ok := lookupSpec(key); ok && spec.typ == kInt {
		typ = "-int"
	}
	_, missing, err := s.run("write", s.domain, key, typ, val)
	if missing {
		return fmt.Errorf("defaults write %s %s failed", s.domain, key)
	}
	return err
}

func (s *defaultsStore) Unset(key string) error {
	_, _, err := s.run("delete", s.domain, key)
	return err
}
