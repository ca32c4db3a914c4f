//go:build !darwin

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var errKeyFileMode = errors.New("gemini key file is accessible to other users")

// geminiKeyPath holds the Gemini API key on platforms without a system
// keychain. The file must not be group or world accessible.
func geminiKeyPath() string {
	return filepath.Join(configDir(), "gemini_api_key")
}

func apiKeyHint() string {
	return " or run `flowmart config set-key` (stored in " + geminiKeyPath() + ")"
}

type platformSecrets struct{}

// GeminiKey returns "" with no error when no key has been stored.
func (platformSecrets) GeminiKey() (string, error) {
	p := geminiKeyPath()
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o077 != 0 {
		return "", fmt.Errorf("%w: %s has mode %v, run chmod 600", errKeyFileMode, p, info.Mode().Perm())
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func storeGeminiKey(key string) error {
	p := geminiKeyPath()
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(p, []byte(key+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing gemini key: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(p, 0o600)
}
