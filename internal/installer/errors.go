package installer

import "fmt"

// AlreadyConfiguredError is returned when the configuration marker is
// present and replacement was not requested.
type AlreadyConfiguredError struct {
	AgentName string
}

func (e *AlreadyConfiguredError) Error() string {
	return fmt.Sprintf("agent %s is already configured (marker file present); pass -replace to reconfigure", e.AgentName)
}

// CreationError is returned when the install directory cannot be created.
type CreationError struct {
	Path string
	Err  error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("create install directory %s: %v", e.Path, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

// ExtractionError is returned when the agent package cannot be unpacked.
type ExtractionError struct {
	Archive string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Archive, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// InstallerNotFoundError is returned when the extracted package does not
// contain the configuration executable.
type InstallerNotFoundError struct {
	Path string
}

func (e *InstallerNotFoundError) Error() string {
	return fmt.Sprintf("configuration executable not found at %s", e.Path)
}

// ConfigurationError is returned when the configuration executable
// exits non-zero.
type ConfigurationError struct {
	ExitCode int
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("agent configuration failed with exit code %d", e.ExitCode)
}
