// Package installer orchestrates build agent provisioning: install
// directory creation, idempotency guard, package download, extraction,
// auto-logon preparation, and unattended agent configuration.
//
// The sequence is strictly ordered and fail-fast: the first failing
// step aborts the run and its error surfaces unchanged to the caller.
package installer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/buildforge/vstsinstall/internal/archive"
	"github.com/buildforge/vstsinstall/internal/autologon"
	"github.com/buildforge/vstsinstall/internal/config"
	"github.com/buildforge/vstsinstall/internal/download"
	"github.com/buildforge/vstsinstall/internal/journal"
	"github.com/buildforge/vstsinstall/internal/runner"
	"github.com/buildforge/vstsinstall/internal/wmi"
)

const (
	// MarkerFile is created by config.cmd inside the install directory
	// once the agent is configured. Its presence means "already done".
	MarkerFile = ".agent"

	// configCmd is the configuration executable shipped in the package.
	configCmd = "config.cmd"

	// lowDiskBytes is the free-space level below which the preflight
	// warns. The extracted agent plus a few builds wants more than this.
	lowDiskBytes = 2 << 30
)

// PackageFetcher retrieves the agent archive and returns its local path.
type PackageFetcher interface {
	Fetch(ctx context.Context, serverURL string) (string, error)
}

// AutologonPreparer readies per-user registry state for auto-logon mode.
type AutologonPreparer interface {
	Prepare(account, password string) error
}

// Installer runs the provisioning sequence. Collaborators are fields so
// tests can substitute fakes; New wires the production set.
type Installer struct {
	cfg      *config.InstallConfig
	fetcher  PackageFetcher
	extract  func(archivePath, destDir string) error
	preparer AutologonPreparer
	runner   runner.Runner
	journal  *journal.Journal
}

// New builds an Installer with production collaborators. The journal
// may be nil, in which case step recording is dropped.
func New(cfg *config.InstallConfig, j *journal.Journal) *Installer {
	return &Installer{
		cfg:      cfg,
		fetcher:  download.NewFetcher(cfg.Token, download.DefaultRetryPolicy),
		extract:  archive.ExtractZip,
		preparer: autologon.NewPreparer(),
		runner:   runner.ExecRunner{},
		journal:  j,
	}
}

// Run executes the full provisioning sequence.
func (in *Installer) Run(ctx context.Context) error {
	cfg := in.cfg
	log.Printf("[installer] Provisioning agent %s from %s into %s", cfg.AgentName, cfg.ServerURL, cfg.InstallPath)

	in.preflightDrive(ctx)

	if err := in.provisionInstallDir(); err != nil {
		in.journal.Record("provision", journal.StatusFailed, err.Error())
		return err
	}
	in.journal.Record("provision", journal.StatusOK, cfg.InstallPath)

	if err := in.checkNotConfigured(); err != nil {
		in.journal.Record("guard", journal.StatusFailed, err.Error())
		return err
	}
	in.journal.Record("guard", journal.StatusOK, "")

	archivePath, err := in.fetcher.Fetch(ctx, cfg.ServerURL)
	if err != nil {
		in.journal.Record("download", journal.StatusFailed, err.Error())
		return err
	}
	in.journal.Record("download", journal.StatusOK, archivePath)

	if err := in.extract(archivePath, cfg.InstallPath); err != nil {
		err = &ExtractionError{Archive: archivePath, Err: err}
		in.journal.Record("extract", journal.StatusFailed, err.Error())
		return err
	}
	in.journal.Record("extract", journal.StatusOK, "")

	if cfg.RunAsAutoLogon {
		if err := in.preparer.Prepare(cfg.WindowsLogonAccount, cfg.WindowsLogonPassword); err != nil {
			in.journal.Record("autologon", journal.StatusFailed, err.Error())
			return err
		}
		in.journal.Record("autologon", journal.StatusOK, cfg.WindowsLogonAccount)
	} else {
		in.journal.Record("autologon", journal.StatusSkipped, "service mode")
	}

	if err := in.configure(ctx); err != nil {
		in.journal.Record("configure", journal.StatusFailed, err.Error())
		return err
	}
	in.journal.Record("configure", journal.StatusOK, "")

	log.Printf("[installer] Agent %s provisioned", cfg.AgentName)
	return nil
}

// provisionInstallDir creates the install directory. Idempotent when it
// already exists.
func (in *Installer) provisionInstallDir() error {
	if err := os.MkdirAll(in.cfg.InstallPath, 0755); err != nil {
		return &CreationError{Path: in.cfg.InstallPath, Err: err}
	}
	return nil
}

// checkNotConfigured enforces idempotency via the marker file. The
// check is skipped entirely when replacement was requested.
func (in *Installer) checkNotConfigured() error {
	if in.cfg.ReplaceAgent {
		log.Printf("[installer] Replace requested, skipping configured-agent check")
		return nil
	}
	marker := filepath.Join(in.cfg.InstallPath, MarkerFile)
	if _, err := os.Stat(marker); err == nil {
		return &AlreadyConfiguredError{AgentName: in.cfg.AgentName}
	}
	return nil
}

// preflightDrive checks the target drive over WMI before any directory
// creation. Best-effort: WMI being unavailable (non-Windows, locked
// down COM) only logs; a missing drive or low space logs a warning and
// lets the provisioner produce the authoritative failure.
func (in *Installer) preflightDrive(ctx context.Context) {
	driveID := in.cfg.InstallPath[:2] // "C:"
	disk, err := wmi.QuerySingle(ctx, `root\CIMV2`,
		fmt.Sprintf("SELECT DeviceID, FreeSpace FROM Win32_LogicalDisk WHERE DeviceID = '%s'", driveID))
	if err != nil {
		log.Printf("[installer] Drive preflight unavailable: %v", err)
		return
	}
	if free, ok := wmi.GetPropertyUint64(disk, "FreeSpace"); ok && free < lowDiskBytes {
		log.Printf("[installer] WARNING: drive %s has only %d bytes free", driveID, free)
	}
}

// configure locates config.cmd in the install directory and runs it
// unattended with the install directory as working directory.
func (in *Installer) configure(ctx context.Context) error {
	exe := filepath.Join(in.cfg.InstallPath, configCmd)
	if _, err := os.Stat(exe); err != nil {
		return &InstallerNotFoundError{Path: exe}
	}

	args := configArgs(in.cfg)
	code, err := in.runner.Run(ctx, exe, args, in.cfg.InstallPath)
	if err != nil {
		return fmt.Errorf("run %s: %w", configCmd, err)
	}
	if code != 0 {
		return &ConfigurationError{ExitCode: code}
	}
	return nil
}

// configArgs builds the deterministic argument vector for config.cmd.
// Auto-logon and service mode are mutually exclusive; password, work
// directory, and replace tokens appear only when their sources are set.
func configArgs(cfg *config.InstallConfig) []string {
	args := []string{
		"--unattended",
		"--url", cfg.ServerURL,
		"--auth", "PAT",
		"--token", cfg.Token,
		"--pool", cfg.PoolName,
		"--agent", cfg.AgentName,
	}
	if cfg.RunAsAutoLogon {
		args = append(args, "--runAsAutoLogon", "--overwriteAutoLogon")
	} else {
		args = append(args, "--runAsService")
	}
	args = append(args, "--windowsLogonAccount", cfg.WindowsLogonAccount)
	if cfg.WindowsLogonPassword != "" {
		args = append(args, "--windowsLogonPassword", cfg.WindowsLogonPassword)
	}
	if cfg.WorkDir != "" {
		args = append(args, "--work", cfg.WorkDir)
	}
	if cfg.ReplaceAgent {
		args = append(args, "--replace")
	}
	return args
}
