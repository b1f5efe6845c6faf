//go:build !windows

package autologon

import "fmt"

type unsupportedEnv struct{}

func newEnv() Env { return unsupportedEnv{} }

// HiveAvailable is false off-Windows, which routes Prepare into its
// degraded warn-and-continue path.
func (unsupportedEnv) HiveAvailable() bool { return false }

func (unsupportedEnv) ResolveSecurityIdentifier(string) (string, error) {
	return "", fmt.Errorf("auto-logon preparation only supported on Windows")
}

func (unsupportedEnv) UserHiveExists(string) (bool, error) {
	return false, fmt.Errorf("auto-logon preparation only supported on Windows")
}

func (unsupportedEnv) EnsureAutologonKey(string) error {
	return fmt.Errorf("auto-logon preparation only supported on Windows")
}
