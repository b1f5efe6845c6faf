package autologon

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

type fakeEnv struct {
	hiveAvailable bool
	sid           string
	resolveErr    error

	// hive appears after this many existence checks
	checksUntilFound int
	hiveChecks       int

	ensureCalled bool
	ensureErr    error

	resolvedAccount string
}

func (f *fakeEnv) HiveAvailable() bool { return f.hiveAvailable }

func (f *fakeEnv) ResolveSecurityIdentifier(account string) (string, error) {
	f.resolvedAccount = account
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return f.sid, nil
}

func (f *fakeEnv) UserHiveExists(sid string) (bool, error) {
	f.hiveChecks++
	return f.hiveChecks > f.checksUntilFound, nil
}

func (f *fakeEnv) EnsureAutologonKey(sid string) error {
	f.ensureCalled = true
	return f.ensureErr
}

func testPreparer(env Env) *Preparer {
	return &Preparer{
		Env:          env,
		PollInterval: time.Millisecond,
		PollBudget:   12 * time.Millisecond,
	}
}

func TestPrepareRequiresPassword(t *testing.T) {
	env := &fakeEnv{hiveAvailable: true, sid: "S-1-5-21-1"}
	err := testPreparer(env).Prepare("builder", "")

	var merr *MissingCredentialError
	if !errors.As(err, &merr) {
		t.Fatalf("expected MissingCredentialError, got %v", err)
	}
	if env.hiveChecks != 0 {
		t.Error("no registry access should happen without a password")
	}
}

func TestPrepareDegradedWithoutHiveRoot(t *testing.T) {
	env := &fakeEnv{hiveAvailable: false}
	if err := testPreparer(env).Prepare("builder", "pw"); err != nil {
		t.Fatalf("degraded mode must not fail, got %v", err)
	}
	if env.resolvedAccount != "" {
		t.Error("degraded mode should skip SID resolution")
	}
}

func TestPrepareResolveFailureIsFatal(t *testing.T) {
	env := &fakeEnv{hiveAvailable: true, resolveErr: fmt.Errorf("no such account")}
	if err := testPreparer(env).Prepare("builder", "pw"); err == nil {
		t.Fatal("expected error when SID resolution fails")
	}
}

func TestPrepareFindsHiveAfterPolling(t *testing.T) {
	env := &fakeEnv{hiveAvailable: true, sid: "S-1-5-21-1", checksUntilFound: 3}
	if err := testPreparer(env).Prepare("builder", "pw"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.hiveChecks != 4 {
		t.Errorf("expected 4 hive checks, got %d", env.hiveChecks)
	}
	if !env.ensureCalled {
		t.Error("run-on-logon key should be ensured once the hive appears")
	}
}

func TestPrepareTimeoutIsNotAnError(t *testing.T) {
	env := &fakeEnv{hiveAvailable: true, sid: "S-1-5-21-1", checksUntilFound: 1000}
	if err := testPreparer(env).Prepare("builder", "pw"); err != nil {
		t.Fatalf("poll timeout must degrade to a warning, got %v", err)
	}
	if env.ensureCalled {
		t.Error("key must not be ensured when the hive never appeared")
	}
	if env.hiveChecks != 12 {
		t.Errorf("expected 12 checks within the budget, got %d", env.hiveChecks)
	}
}

func TestPrepareEnsureKeyFailureIsFatal(t *testing.T) {
	env := &fakeEnv{hiveAvailable: true, sid: "S-1-5-21-1", ensureErr: fmt.Errorf("access denied")}
	if err := testPreparer(env).Prepare("builder", "pw"); err == nil {
		t.Fatal("expected error when key creation fails")
	}
}

func TestQualifyAccount(t *testing.T) {
	if got := QualifyAccount(`CORP\builder`); got != `CORP\builder` {
		t.Errorf("qualified account must pass through, got %q", got)
	}

	host, err := os.Hostname()
	if err != nil {
		t.Skipf("no hostname: %v", err)
	}
	got := QualifyAccount("builder")
	if got != host+`\builder` {
		t.Errorf("expected %q, got %q", host+`\builder`, got)
	}
	if !strings.Contains(got, `\`) {
		t.Error("bare account must be domain-qualified")
	}
}
