//go:build darwin

package config

import (
	"errors"
	"os/exec"
	"strings"
)

const (
	secretService = "flowmart"
	secretAccount = "gemini_api_key"

	// security exits with 44 when no matching keychain item exists.
	keychainItemNotFound = 44
)

func apiKeyHint() string {
	return " or run `flowmart config set-key` (macOS Keychain, service: " + secretService + ", account: " + secretAccount + ")"
}

type platformSecrets struct{}

// GeminiKey returns "" with no error when no key has been stored.
func (platformSecrets) GeminiKey() (string, error) {
	out, err := exec.Command(
		"security", "find-generic-password",
		"-s", secretService,
		"-a", secretAccount,
		"-w",
	).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == keychainItemNotFound {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func storeGeminiKey(key string) error {
	return exec.Command(
		"security", "add-generic-password",
		"-U",
		"-s", secretService,
		"-a", secretAccount,
		"-w", key,
	).Run()
}
