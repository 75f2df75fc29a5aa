//go:build !darwin

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileBackend_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preppal", "config.json")

	b := newFileBackend(path)
	if err := b.SetInt("server.port", 4300); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if err := b.SetString("proxy.model", "openai/gpt-4o"); err != nil {
		t.Fatalf("SetString: %v", err)
	}

	reloaded := newFileBackend(path)
	if port, ok, err := reloaded.GetInt("server.port"); err != nil || !ok || port != 4300 {
		t.Errorf("GetInt = %d %v %v", port, ok, err)
	}
	if model, ok, _ := reloaded.GetString("proxy.model"); !ok || model != "openai/gpt-4o" {
		t.Errorf("GetString = %q %v", model, ok)
	}

	if err := reloaded.Delete("proxy.model"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := newFileBackend(path).GetString("proxy.model"); ok {
		t.Error("deleted key still present")
	}
}

func TestFileBackend_CorruptFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := newFileBackend(path).GetString("proxy.model"); ok || err != nil {
		t.Errorf("corrupt file: ok=%v err=%v", ok, err)
	}
}

func TestFileKeychain(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	kc := NewKeychain()

	if _, err := kc.Get(keychainService, apiTokenAccount); err == nil {
		t.Fatal("expected error before anything is stored")
	}
	if err := kc.Set(keychainService, apiTokenAccount, "tok"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := kc.Get(keychainService, apiTokenAccount)
	if err != nil || got != "tok" {
		t.Errorf("Get = %q %v", got, err)
	}

	info, err := os.Stat(secretsFilePath())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("secrets file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestFileBackend_HandEditedValues(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	edited := `{"server.port": "4500", "server.mcp_stdio": true, "conversation.max_tokens": 1.5}`
	if err := os.WriteFile(path, []byte(edited), 0o600); err != nil {
		t.Fatal(err)
	}

	b := newFileBackend(path)
	if port, ok, err := b.GetInt("server.port"); err != nil || !ok || port != 4500 {
		t.Errorf("quoted port = %d %v %v", port, ok, err)
	}
	if v, ok, _ := b.GetString("server.mcp_stdio"); !ok || v != "true" {
		t.Errorf("bool as string = %q %v", v, ok)
	}
	if _, ok, err := b.GetInt("conversation.max_tokens"); !ok || err == nil {
		t.Errorf("fractional int: ok=%v err=%v, want an error", ok, err)
	}

	if _, err := loadWith(b, newMockKeychain()); err == nil {
		t.Error("expected loadWith to reject a fractional integer")
	}

	if err := b.Delete("conversation.max_tokens"); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadWith(b, newMockKeychain())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 4500 || !cfg.Server.MCPStdio {
		t.Errorf("cfg.Server = %+v", cfg.Server)
	}
}
