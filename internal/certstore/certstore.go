// Package certstore imports a certificate into the local machine store.
// One shot: decode, write to a temp file, hand it to certutil, clean up.
package certstore

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"

	"github.com/buildforge/vstsinstall/internal/runner"
)

// DefaultStore is the machine store certificates land in when no store
// is named.
const DefaultStore = "Root"

// Importer imports certificates via certutil through a Runner.
type Importer struct {
	Runner runner.Runner
}

// ImportBase64 decodes a base64 certificate blob and imports it. A
// non-empty password means the blob is a PFX bundle; otherwise it is a
// plain certificate added to the named store.
func (im *Importer) ImportBase64(ctx context.Context, certBase64, password, store string) error {
	data, err := base64.StdEncoding.DecodeString(certBase64)
	if err != nil {
		return fmt.Errorf("decode certificate: %w", err)
	}

	tmp, err := os.CreateTemp("", "cert-import-*.bin")
	if err != nil {
		return fmt.Errorf("create temp certificate file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write certificate file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close certificate file: %w", err)
	}

	args := importArgs(path, password, store)
	code, err := im.Runner.Run(ctx, "certutil.exe", args, "")
	if err != nil {
		return fmt.Errorf("run certutil: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("certutil exited with code %d", code)
	}

	log.Printf("[certstore] Imported certificate (%d bytes)", len(data))
	return nil
}

func importArgs(path, password, store string) []string {
	if store == "" {
		store = DefaultStore
	}
	if password != "" {
		return []string{"-f", "-p", password, "-importpfx", path}
	}
	return []string{"-f", "-addstore", store, path}
}
