// Package autologon prepares the per-user registry state needed for the
// agent to run under an interactive auto-logon session.
//
// The OS materializes a user's registry hive asynchronously the first
// time the profile is used, so on a freshly created machine the hive may
// not exist yet. Preparation polls for it within a fixed budget and
// degrades to a warning when the budget runs out; the configuration
// tool can still succeed if the profile appears later.
package autologon

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// MissingCredentialError is returned when auto-logon is requested
// without a Windows logon password.
type MissingCredentialError struct {
	Account string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("auto-logon requested for %s but no Windows logon password was provided", e.Account)
}

// Env isolates the platform identity and registry operations so the
// polling logic is test-substitutable.
type Env interface {
	// HiveAvailable reports whether the per-user hive root (HKU) can
	// be reached at all.
	HiveAvailable() bool
	// ResolveSecurityIdentifier maps a domain-qualified account to its
	// security identifier string.
	ResolveSecurityIdentifier(account string) (string, error)
	// UserHiveExists reports whether the identifier's per-user
	// registry root has been created.
	UserHiveExists(sid string) (bool, error)
	// EnsureAutologonKey creates the run-on-logon key under the user's
	// hive if it is absent.
	EnsureAutologonKey(sid string) error
}

// Preparer polls for the logon user's registry hive and ensures the
// run-on-logon key exists.
type Preparer struct {
	Env          Env
	PollInterval time.Duration
	PollBudget   time.Duration
}

// NewPreparer returns a Preparer with the platform Env and the
// production polling timing: 10s checks within a 120s budget.
func NewPreparer() *Preparer {
	return &Preparer{
		Env:          newEnv(),
		PollInterval: 10 * time.Second,
		PollBudget:   120 * time.Second,
	}
}

// Prepare readies the logon account's registry state. An empty password
// is the only hard precondition; everything past SID resolution is best
// effort and reports problems as warnings rather than failures.
func (p *Preparer) Prepare(account, password string) error {
	if password == "" {
		return &MissingCredentialError{Account: account}
	}

	if !p.Env.HiveAvailable() {
		log.Printf("[autologon] WARNING: per-user hive root not reachable, skipping profile check")
		return nil
	}

	qualified := QualifyAccount(account)
	sid, err := p.Env.ResolveSecurityIdentifier(qualified)
	if err != nil {
		return fmt.Errorf("resolve security identifier for %s: %w", qualified, err)
	}
	log.Printf("[autologon] Resolved %s to %s", qualified, sid)

	for remaining := p.PollBudget; remaining > 0; remaining -= p.PollInterval {
		exists, err := p.Env.UserHiveExists(sid)
		if err != nil {
			log.Printf("[autologon] Hive check failed: %v", err)
		}
		if exists {
			log.Printf("[autologon] User hive present for %s", sid)
			if err := p.Env.EnsureAutologonKey(sid); err != nil {
				return fmt.Errorf("ensure run-on-logon key: %w", err)
			}
			return nil
		}
		log.Printf("[autologon] User hive for %s not yet created, %v of budget left", sid, remaining)
		time.Sleep(p.PollInterval)
	}

	log.Printf("[autologon] WARNING: user hive for %s did not appear within %v, proceeding anyway", sid, p.PollBudget)
	return nil
}

// QualifyAccount normalizes a logon account to domain\user form,
// defaulting the domain to the local machine name.
func QualifyAccount(account string) string {
	if strings.Contains(account, `\`) {
		return account
	}
	host, err := os.Hostname()
	if err != nil {
		return account
	}
	return host + `\` + account
}
