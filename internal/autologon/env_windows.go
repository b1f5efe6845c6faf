//go:build windows

package autologon

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

// autologonRunKey is the run-on-logon key under a user's hive.
const autologonRunKey = `SOFTWARE\Microsoft\Windows\CurrentVersion\Run`

type windowsEnv struct{}

func newEnv() Env { return windowsEnv{} }

func (windowsEnv) HiveAvailable() bool {
	k, err := registry.OpenKey(registry.USERS, "", registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return false
	}
	k.Close()
	return true
}

func (windowsEnv) ResolveSecurityIdentifier(account string) (string, error) {
	sid, _, _, err := windows.LookupSID("", account)
	if err != nil {
		return "", fmt.Errorf("LookupSID %s: %w", account, err)
	}
	return sid.String(), nil
}

func (windowsEnv) UserHiveExists(sid string) (bool, error) {
	k, err := registry.OpenKey(registry.USERS, sid, registry.QUERY_VALUE)
	if errors.Is(err, registry.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	k.Close()
	return true, nil
}

func (windowsEnv) EnsureAutologonKey(sid string) error {
	k, _, err := registry.CreateKey(registry.USERS, sid+`\`+autologonRunKey, registry.ALL_ACCESS)
	if err != nil {
		return fmt.Errorf("create %s under %s: %w", autologonRunKey, sid, err)
	}
	return k.Close()
}
