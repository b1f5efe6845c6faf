// Package wmi provides helpers for Windows Management Instrumentation
// queries, used by the installer's drive preflight.
//
// Queries execute through go-ole on Windows; on other platforms they
// return an error the caller treats as "preflight unavailable".
package wmi

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
)

// QueryResult is a single WMI object as a map of property names to values.
type QueryResult map[string]interface{}

// Query executes a WQL query in the given namespace (e.g. "root\\CIMV2")
// and returns one QueryResult per object.
func Query(ctx context.Context, namespace, query string) ([]QueryResult, error) {
	if runtime.GOOS != "windows" {
		return nil, fmt.Errorf("WMI queries only supported on Windows")
	}
	return queryWindows(ctx, namespace, query)
}

// QuerySingle executes a query expecting exactly one result.
func QuerySingle(ctx context.Context, namespace, query string) (QueryResult, error) {
	results, err := Query(ctx, namespace, query)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no results for query")
	}
	return results[0], nil
}

// GetPropertyString extracts a string property from a QueryResult.
func GetPropertyString(result QueryResult, name string) (string, bool) {
	val, ok := result[name]
	if !ok {
		return "", false
	}
	sval, ok := val.(string)
	return sval, ok
}

// GetPropertyUint64 extracts a 64-bit unsigned property. WMI marshals
// uint64 values (disk sizes) as strings over OLE, so both numeric and
// string representations are accepted.
func GetPropertyUint64(result QueryResult, name string) (uint64, bool) {
	val, ok := result[name]
	if !ok {
		return 0, false
	}
	switch v := val.(type) {
	case uint64:
		return v, true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case int32:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
