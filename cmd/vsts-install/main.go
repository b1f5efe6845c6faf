// vsts-install provisions a hosted build agent on a freshly created
// Windows machine.
//
// The run is a single fail-fast pass:
//   - resolve the service URL from an account name or explicit URL
//   - create <drive>:\<agentName> and check the .agent marker
//   - download the latest agent package with bounded retry
//   - extract it into the install directory
//   - for auto-logon mode, wait for the logon user's registry hive
//   - run config.cmd unattended and check its exit code
//
// Success exits 0; any failure prints a single error and exits -1.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/buildforge/vstsinstall/internal/config"
	"github.com/buildforge/vstsinstall/internal/installer"
	"github.com/buildforge/vstsinstall/internal/journal"
)

var (
	Version   = "1.0.0"
	BuildTime = "unknown"
)

var (
	flagURL           = flag.String("url", "", "Explicit service base URL (optional; derived from -account otherwise)")
	flagAccount       = flag.String("account", "", "Hosted service account name")
	flagToken         = flag.String("token", "", "Personal access token")
	flagPool          = flag.String("pool", "default", "Agent pool name")
	flagAgentSuffix   = flag.String("agent-suffix", "", "Suffix appended to the host name to form the agent name")
	flagDrive         = flag.String("drive", "C", "Drive letter for the install directory")
	flagWork          = flag.String("work", "", "Agent work directory (optional)")
	flagLogonAccount  = flag.String("logon-account", "", "Windows account the agent runs under")
	flagLogonPassword = flag.String("logon-password", "", "Password for the logon account (required for auto-logon)")
	flagAutoLogon     = flag.Bool("run-as-autologon", false, "Configure an interactive auto-logon agent instead of a service")
	flagReplace       = flag.Bool("replace", false, "Replace an already-configured agent")
	flagSettings      = flag.String("settings", "", "JSON settings file path (optional; flags override)")
	flagVersion       = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *flagVersion {
		fmt.Printf("vsts-install %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("vsts-install v%s starting...", Version)

	if err := run(); err != nil {
		log.Printf("ERROR: %v", err)
		os.Exit(-1)
	}
	log.Println("Agent provisioning complete")
}

func run() error {
	settings, err := config.LoadSettings(*flagSettings)
	if err != nil {
		return err
	}
	applyFlags(settings)

	cfg, err := config.New(settings)
	if err != nil {
		return err
	}

	j, err := journal.Open(cfg.DataDir)
	if err != nil {
		log.Printf("[main] WARNING: provisioning journal unavailable: %v", err)
		j = nil
	}
	defer j.Close()

	return installer.New(cfg, j).Run(context.Background())
}

// applyFlags overlays command-line flags onto file-loaded settings.
// String flags win when non-empty; defaulted and bool flags win when
// explicitly set on the command line.
func applyFlags(s *config.Settings) {
	if *flagURL != "" {
		s.ServerURL = *flagURL
	}
	if *flagAccount != "" {
		s.Account = *flagAccount
	}
	if *flagToken != "" {
		s.Token = *flagToken
	}
	if *flagAgentSuffix != "" {
		s.AgentNameSuffix = *flagAgentSuffix
	}
	if *flagWork != "" {
		s.WorkDir = *flagWork
	}
	if *flagLogonAccount != "" {
		s.WindowsLogonAccount = *flagLogonAccount
	}
	if *flagLogonPassword != "" {
		s.WindowsLogonPassword = *flagLogonPassword
	}
	if s.PoolName == "" || flagWasSet("pool") {
		s.PoolName = *flagPool
	}
	if s.DriveLetter == "" || flagWasSet("drive") {
		s.DriveLetter = *flagDrive
	}
	if flagWasSet("run-as-autologon") {
		s.RunAsAutoLogon = *flagAutoLogon
	}
	if flagWasSet("replace") {
		s.ReplaceAgent = *flagReplace
	}
}

func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
