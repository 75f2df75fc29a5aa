//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.preppal.app"

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "preppal-data"
	}
	return filepath.Join(home, "Library", "Application Support", "PrepPal")
}

func apiKeyHint() string {
	return fmt.Sprintf(" or the macOS Keychain item %q (account %q)", keychainService, openRouterAccount)
}

// defaultsBackend keeps settings in the user defaults database through the
// `defaults` tool.
type defaultsBackend struct {
	domain string
}

func newPlatformBackend() ConfigBackend {
	return defaultsBackend{domain: defaultsDomain}
}

func (b defaultsBackend) run(args ...string) (string, error) {
	out, err := exec.Command("defaults", args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// lookup reports ok=false when the key has never been written; `defaults
// read` exits 1 in that case.
func (b defaultsBackend) lookup(key string) (string, bool, error) {
	out, err := b.run("read", b.domain, key)
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return out, true, nil
	case errors.As(err, &exitErr) && exitErr.ExitCode() == 1:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("defaults read %s %s: %w (%s)", b.domain, key, err, out)
	}
}

func (b defaultsBackend) write(key, kind, val string) error {
	if out, err := b.run("write", b.domain, key, kind, val); err != nil {
		return fmt.Errorf("defaults write %s %s: %w (%s)", b.domain, key, err, out)
	}
	return nil
}

func (b defaultsBackend) GetString(key string) (string, bool, error) {
	return b.lookup(key)
}

func (b defaultsBackend) GetInt(key string) (int, bool, error) {
	raw, ok, err := b.lookup(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %q is not an integer", key, raw)
	}
	return n, true, nil
}

func (b defaultsBackend) SetString(key, val string) error {
	return b.write(key, "-string", val)
}

func (b defaultsBackend) SetInt(key string, val int) error {
	return b.write(key, "-int", strconv.Itoa(val))
}

func (b defaultsBackend) Delete(key string) error {
	if _, ok, err := b.lookup(key); !ok || err != nil {
		return err
	}
	if out, err := b.run("delete", b.domain, key); err != nil {
		return fmt.Errorf("defaults delete %s %s: %w (%s)", b.domain, key, err, out)
	}
	return nil
}
