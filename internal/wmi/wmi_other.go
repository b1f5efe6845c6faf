//go:build !windows

// Non-Windows stub; the drive preflight is skipped on these platforms.
package wmi

import (
	"context"
	"fmt"
)

func queryWindows(ctx context.Context, namespace, query string) ([]QueryResult, error) {
	return nil, fmt.Errorf("WMI queries only supported on Windows")
}
