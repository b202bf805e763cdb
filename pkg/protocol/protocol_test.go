package protocol

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeArgsRoundTrip(t *testing.T) {
	args := []string{"commit", "-m", "fix: handle spaces in message"}

	encoded, err := EncodeArgs(args)
	if err != nil {
		t.Fatalf("EncodeArgs failed: %v", err)
	}

	decoded, err := DecodeArgs(encoded)
	if err != nil {
		t.Fatalf("DecodeArgs failed: %v", err)
	}

	if len(decoded) != len(args) {
		t.Fatalf("expected %d args, got %d", len(args), len(decoded))
	}
	for i := range args {
		if decoded[i] != args[i] {
			t.Errorf("arg %d: expected %q, got %q", i, args[i], decoded[i])
		}
	}
}

func TestDecodeArgsRejectsGarbage(t *testing.T) {
	if _, err := DecodeArgs("not json"); err == nil {
		t.Fatal("expected error for invalid encoding")
	}
}

func TestFormatOperation(t *testing.T) {
	got := FormatOperation([]string{"status", "--short"})
	if got != "git status --short" {
		t.Errorf("expected %q, got %q", "git status --short", got)
	}
}

func TestLockTimeoutErrorMentionsScopeAndPath(t *testing.T) {
	err := &LockTimeoutError{
		Scope:     ScopeGlobal,
		LockPath:  "/tmp/locks/global.lock",
		Operation: "git push origin main",
		Timeout:   "30s",
	}

	msg := err.Error()
	for _, want := range []string{"global", "/tmp/locks/global.lock", "git push origin main", "30s"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message missing %q: %s", want, msg)
		}
	}
}

func TestTypedErrorDiscrimination(t *testing.T) {
	var wrapped error = &QueueUnavailableError{Reason: "worker not running"}

	var qerr *QueueUnavailableError
	if !errors.As(wrapped, &qerr) {
		t.Fatal("errors.As failed to match QueueUnavailableError")
	}
	if qerr.Reason != "worker not running" {
		t.Errorf("unexpected reason: %s", qerr.Reason)
	}
}

func TestLockUnavailableErrorDiscrimination(t *testing.T) {
	var wrapped error = &LockUnavailableError{
		LockPath: "/tmp/locks/global.lock",
		Reason:   "no advisory locking primitive on this platform",
	}

	var uerr *LockUnavailableError
	if !errors.As(wrapped, &uerr) {
		t.Fatal("errors.As failed to match LockUnavailableError")
	}
	msg := uerr.Error()
	for _, want := range []string{"/tmp/locks/global.lock", "no advisory locking primitive"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message missing %q: %s", want, msg)
		}
	}
}

func TestOperationErrorCarriesExitCode(t *testing.T) {
	err := &OperationError{Operation: "git merge feature", ExitCode: 128, Output: "fatal: not a git repository"}
	if !strings.Contains(err.Error(), "exit 128") {
		t.Errorf("error message missing exit code: %s", err.Error())
	}
}
