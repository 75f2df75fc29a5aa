//go:build darwin

package config

import (
	"fmt"
	"os/exec"
)

func security(args ...string) *exec.Cmd {
	return exec.Command("security", args...)
}

func keychainGet(service, account string) ([]byte, error) {
	out, err := security("find-generic-password", "-s", service, "-a", account, "-w").Output()
	if err != nil {
		return nil, fmt.Errorf("keychain item %s/%s: %w", service, account, err)
	}
	return out, nil
}

// keychainSet creates the item, or updates it in place (-U).
func keychainSet(service, account, value string) error {
	if err := security("add-generic-password", "-U", "-s", service, "-a", account, "-w", value).Run(); err != nil {
		return fmt.Errorf("storing keychain item %s/%s: %w", service, account, err)
	}
	return nil
}
