//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestFileStore_SectionedLayout(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	st := newPlatformStore()
	if err := setKeyWith(st, "server.port", "4200"); err != nil {
		t.Fatalf("set server.port: %v", err)
	}
	if err := setKeyWith(st, "catalog.source", "sqlite"); err != nil {
		t.Fatalf("set catalog.source: %v", err)
	}
	if err := setKeyWith(st, "storage.data_dir", "/srv/flowmart"); err != nil {
		t.Fatalf("set storage.data_dir: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "flowmart", "config.json"))
	if err != nil {
		t.Fatalf("reading config file: %v", err)
	}
	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("config file is not sectioned JSON: %v\n%s", err, data)
	}
	if raw["server"]["port"] != float64(4200) {
		t.Errorf("server.port = %#v, want JSON number 4200", raw["server"]["port"])
	}
	if raw["catalog"]["source"] != "sqlite" || raw["storage"]["data_dir"] != "/srv/flowmart" {
		t.Errorf("sections = %v", raw)
	}

	clearEnv(t)
	cfg, err := loadWith(newPlatformStore(), fakeSecrets{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 4200 || cfg.Catalog.Source != "sqlite" || cfg.Storage.DataDir != "/srv/flowmart" {
		t.Errorf("cfg = %+v", cfg)
	}

	if err := unsetKeyWith(newPlatformStore(), "catalog.source"); err != nil {
		t.Fatalf("unset: %v", err)
	}
	reloaded := newPlatformStore()
	if _, ok, _ := reloaded.Get("catalog.source"); ok {
		t.Error("catalog.source still present after Unset")
	}
	if fs := reloaded.(*fileStore); fs.sections["catalog"] != nil {
		t.Errorf("empty catalog section kept: %v", fs.sections)
	}
}

func TestFileStore_HandWrittenValues(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	clearEnv(t)

	p := filepath.Join(dir, "flowmart", "config.json")
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		t.Fatal(err)
	}
	body := `{"server": {"port": "4300"}, "ai": {"timeout": "2s", "provider": "none"}, "extra": {"knob": 1}}`
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadWith(newPlatformStore(), fakeSecrets{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 4300 || cfg.AI.Provider != "none" || cfg.AI.Timeout.String() != "2s" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestFileStore_MalformedFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	clearEnv(t)

	p := filepath.Join(dir, "flowmart", "config.json")
	os.MkdirAll(filepath.Dir(p), 0o700)
	os.WriteFile(p, []byte(`{"server": 4000`), 0o600)

	cfg, err := loadWith(newPlatformStore(), fakeSecrets{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want default", cfg.Server.Port)
	}
}

func TestFileStore_NestedValueIsAnError(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	clearEnv(t)

	p := filepath.Join(dir, "flowmart", "config.json")
	os.MkdirAll(filepath.Dir(p), 0o700)
	os.WriteFile(p, []byte(`{"catalog": {"source": ["seed"]}}`), 0o600)

	if _, err := loadWith(newPlatformStore(), fakeSecrets{}); err == nil {
		t.Fatal("expected error for non-scalar catalog.source")
	}
}

func TestGeminiKeyFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not enforced on windows")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	key, err := platformSecrets{}.GeminiKey()
	if err != nil || key != "" {
		t.Fatalf("GeminiKey() before set = %q, %v; want empty, nil", key, err)
	}

	if err := SetAPIKey("  from-file \n"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	p := filepath.Join(dir, "flowmart", "gemini_api_key")
	info, err := os.Stat(p)
	if err != nil {
		t.Fatalf("key file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("key file mode = %v, want 0600", info.Mode().Perm())
	}

	key, err = platformSecrets{}.GeminiKey()
	if err != nil || key != "from-file" {
		t.Errorf("GeminiKey() = %q, %v; want from-file", key, err)
	}

	if err := os.Chmod(p, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (platformSecrets{}).GeminiKey(); !errors.Is(err, errKeyFileMode) {
		t.Errorf("err = %v, want errKeyFileMode for 0644", err)
	}

	// Storing again tightens the mode.
	if err := SetAPIKey("rotated"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	key, err = platformSecrets{}.GeminiKey()
	if err != nil || key != "rotated" {
		t.Errorf("GeminiKey() = %q, %v; want rotated", key, err)
	}

	if err := SetAPIKey("   "); err == nil {
		t.Error("expected error for blank key")
	}
}
