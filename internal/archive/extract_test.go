package archive

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeTestZip(t *testing.T, entries map[string]string) string {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}

	path := filepath.Join(t.TempDir(), "agent.zip")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write zip file: %v", err)
	}
	return path
}

func TestExtractZip(t *testing.T) {
	archivePath := writeTestZip(t, map[string]string{
		"config.cmd":          "@echo off",
		"bin/Agent.Listener":  "listener",
		"externals/node/node": "node",
	})

	dest := t.TempDir()
	if err := ExtractZip(archivePath, dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for name, want := range map[string]string{
		"config.cmd":          "@echo off",
		"bin/Agent.Listener":  "listener",
		"externals/node/node": "node",
	} {
		data, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(name)))
		if err != nil {
			t.Errorf("expected %s extracted: %v", name, err)
			continue
		}
		if string(data) != want {
			t.Errorf("%s: expected %q, got %q", name, want, data)
		}
	}
}

func TestExtractZipRejectsEscapingEntries(t *testing.T) {
	archivePath := writeTestZip(t, map[string]string{
		"../evil.txt": "escaped",
	})

	dest := t.TempDir()
	if err := ExtractZip(archivePath, dest); err == nil {
		t.Fatal("expected error for entry escaping destination")
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(dest), "evil.txt")); err == nil {
		t.Error("escaping entry was written outside destination")
	}
}

func TestExtractZipMalformedArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.zip")
	if err := os.WriteFile(path, []byte("definitely not a zip"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := ExtractZip(path, t.TempDir()); err == nil {
		t.Fatal("expected error for malformed archive")
	}
}
