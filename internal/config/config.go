// Package config assembles and validates the installation configuration.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// HostingDomain is the hosted service domain used when only an account
// name is supplied.
const HostingDomain = "visualstudio.com"

// Settings carries the raw installation inputs. Fields may come from an
// optional JSON settings file, with command-line flags taking precedence.
type Settings struct {
	ServerURL            string `json:"server_url"`
	Account              string `json:"account"`
	Token                string `json:"token"`
	PoolName             string `json:"pool_name"`
	AgentNameSuffix      string `json:"agent_name_suffix"`
	DriveLetter          string `json:"drive_letter"`
	WorkDir              string `json:"work_dir"`
	WindowsLogonAccount  string `json:"windows_logon_account"`
	WindowsLogonPassword string `json:"windows_logon_password"`
	RunAsAutoLogon       bool   `json:"run_as_auto_logon"`
	ReplaceAgent         bool   `json:"replace_agent"`
}

// InstallConfig is the validated, immutable configuration for one
// provisioning run. Built once by New and never mutated afterwards.
type InstallConfig struct {
	ServerURL            string
	Token                string
	AgentName            string
	PoolName             string
	InstallPath          string
	WorkDir              string
	WindowsLogonAccount  string
	WindowsLogonPassword string
	RunAsAutoLogon       bool
	ReplaceAgent         bool

	// DataDir holds installer-owned state (provisioning journal).
	DataDir string
}

// ValidationError reports a malformed input. Raised before any side
// effect takes place.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// LoadSettings reads a JSON settings file. An empty path yields empty
// settings; flags are expected to fill the gaps.
func LoadSettings(path string) (*Settings, error) {
	s := &Settings{}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse settings file %s: %w", path, err)
	}
	return s, nil
}

// New validates the settings and builds the InstallConfig. The agent
// name is the machine host name plus the optional suffix; the install
// path is <drive>:\<agentName>.
func New(s *Settings) (*InstallConfig, error) {
	if err := validate(s); err != nil {
		return nil, err
	}

	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("resolve host name: %w", err)
	}
	agentName := hostname + s.AgentNameSuffix

	dataDir := os.Getenv("PROGRAMDATA")
	if dataDir == "" {
		dataDir = os.TempDir()
	}
	dataDir = filepath.Join(dataDir, "VstsInstall")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Printf("[config] WARNING: cannot create data dir %s: %v", dataDir, err)
	}

	return &InstallConfig{
		ServerURL:            ResolveServerURL(s.ServerURL, s.Account),
		Token:                s.Token,
		AgentName:            agentName,
		PoolName:             s.PoolName,
		InstallPath:          fmt.Sprintf(`%s:\%s`, strings.ToUpper(s.DriveLetter), agentName),
		WorkDir:              s.WorkDir,
		WindowsLogonAccount:  s.WindowsLogonAccount,
		WindowsLogonPassword: s.WindowsLogonPassword,
		RunAsAutoLogon:       s.RunAsAutoLogon,
		ReplaceAgent:         s.ReplaceAgent,
		DataDir:              dataDir,
	}, nil
}

// ResolveServerURL builds the service base URL: <baseURL>/<account>
// when an explicit base URL is given, https://<account>.visualstudio.com
// otherwise.
func ResolveServerURL(baseURL, account string) string {
	if baseURL != "" {
		return strings.TrimSuffix(baseURL, "/") + "/" + account
	}
	return fmt.Sprintf("https://%s.%s", account, HostingDomain)
}

func validate(s *Settings) error {
	if s.Account == "" {
		return &ValidationError{Field: "account", Reason: "must not be empty"}
	}
	for _, bad := range []string{"http://", "https://", HostingDomain} {
		if strings.Contains(strings.ToLower(s.Account), bad) {
			return &ValidationError{Field: "account", Reason: fmt.Sprintf("must be a bare account name, not a URL (found %q)", bad)}
		}
	}
	if s.ServerURL != "" {
		if !strings.HasPrefix(s.ServerURL, "http://") && !strings.HasPrefix(s.ServerURL, "https://") {
			return &ValidationError{Field: "server URL", Reason: "must start with http:// or https://"}
		}
	}
	if s.Token == "" {
		return &ValidationError{Field: "token", Reason: "a personal access token is required"}
	}
	if s.PoolName == "" {
		return &ValidationError{Field: "pool name", Reason: "must not be empty"}
	}
	if len(s.DriveLetter) != 1 || !isLetter(s.DriveLetter[0]) {
		return &ValidationError{Field: "drive letter", Reason: "must be a single letter"}
	}
	if s.WindowsLogonAccount == "" {
		return &ValidationError{Field: "windows logon account", Reason: "must not be empty"}
	}
	return nil
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
