package certstore

import (
	"context"
	"encoding/base64"
	"os"
	"slices"
	"testing"
)

type fakeRunner struct {
	path     string
	args     []string
	exitCode int

	certBytes []byte
}

func (r *fakeRunner) Run(ctx context.Context, path string, args []string, workDir string) (int, error) {
	r.path = path
	r.args = args
	// The temp file is the last argument; capture it before cleanup.
	if len(args) > 0 {
		r.certBytes, _ = os.ReadFile(args[len(args)-1])
	}
	return r.exitCode, nil
}

func TestImportArgs(t *testing.T) {
	tests := []struct {
		name     string
		password string
		store    string
		want     []string
	}{
		{"plain default store", "", "", []string{"-f", "-addstore", "Root", "cert.bin"}},
		{"plain named store", "", "My", []string{"-f", "-addstore", "My", "cert.bin"}},
		{"pfx", "secret", "", []string{"-f", "-p", "secret", "-importpfx", "cert.bin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := importArgs("cert.bin", tt.password, tt.store)
			if !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestImportBase64(t *testing.T) {
	payload := []byte("fake-der-bytes")
	blob := base64.StdEncoding.EncodeToString(payload)

	run := &fakeRunner{}
	im := &Importer{Runner: run}
	if err := im.ImportBase64(context.Background(), blob, "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if run.path != "certutil.exe" {
		t.Errorf("expected certutil.exe, got %q", run.path)
	}
	if string(run.certBytes) != string(payload) {
		t.Errorf("certutil should see the decoded bytes, got %q", run.certBytes)
	}
	// Temp file must be gone afterwards.
	if len(run.args) > 0 {
		if _, err := os.Stat(run.args[len(run.args)-1]); err == nil {
			t.Error("temp certificate file was not removed")
		}
	}
}

func TestImportBase64RejectsBadBlob(t *testing.T) {
	im := &Importer{Runner: &fakeRunner{}}
	if err := im.ImportBase64(context.Background(), "%%%not-base64%%%", "", ""); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}

func TestImportBase64NonZeroExit(t *testing.T) {
	im := &Importer{Runner: &fakeRunner{exitCode: 2}}
	blob := base64.StdEncoding.EncodeToString([]byte("bytes"))
	if err := im.ImportBase64(context.Background(), blob, "", ""); err == nil {
		t.Fatal("expected error for non-zero certutil exit")
	}
}
