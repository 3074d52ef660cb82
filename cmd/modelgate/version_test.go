package main

import (
	"runtime"
	"testing"
)

func TestVersionDefaults(t *testing.T) {
	origVersion := Version
	origGitCommit := GitCommit
	origBuildDate := BuildDate
	defer func() {
		Version = origVersion
		GitCommit = origGitCommit
		BuildDate = origBuildDate
	}()

	Version = "0.1.0-test"
	GitCommit = "abc123"
	BuildDate = "2026-08-03"

	if Version != "0.1.0-test" {
		t.Errorf("Version = %q, want %q", Version, "0.1.0-test")
	}
	if GitCommit != "abc123" {
		t.Errorf("GitCommit = %q, want %q", GitCommit, "abc123")
	}
	if BuildDate != "2026-08-03" {
		t.Errorf("BuildDate = %q, want %q", BuildDate, "2026-08-03")
	}
}

func TestVersionCommandExists(t *testing.T) {
	if versionCmd == nil {
		t.Fatal("versionCmd is nil")
	}
	if versionCmd.Use != "version" {
		t.Errorf("versionCmd.Use = %q, want %q", versionCmd.Use, "version")
	}
	if versionCmd.Short == "" {
		t.Error("versionCmd.Short should not be empty")
	}
	if versionCmd.Run == nil {
		t.Error("versionCmd.Run should not be nil")
	}
}

func TestRuntimeInfo(t *testing.T) {
	if runtime.Version() == "" {
		t.Error("runtime.Version() should not be empty")
	}
	if runtime.GOOS == "" {
		t.Error("runtime.GOOS should not be empty")
	}
	if runtime.GOARCH == "" {
		t.Error("runtime.GOARCH should not be empty")
	}
}

func TestRunCommandFlags(t *testing.T) {
	if runCmd == nil {
		t.Fatal("runCmd is nil")
	}
	for _, name := range []string{"host", "port", "log-level", "dry-run"} {
		if runCmd.Flags().Lookup(name) == nil {
			t.Errorf("runCmd missing flag %q", name)
		}
	}
}

func TestCompletionCommandValidArgs(t *testing.T) {
	if completionCmd == nil {
		t.Fatal("completionCmd is nil")
	}
	want := map[string]bool{"bash": true, "zsh": true, "fish": true, "powershell": true}
	if len(completionCmd.ValidArgs) != len(want) {
		t.Fatalf("completionCmd.ValidArgs = %v, want %d entries", completionCmd.ValidArgs, len(want))
	}
	for _, arg := range completionCmd.ValidArgs {
		if !want[arg] {
			t.Errorf("unexpected completion arg %q", arg)
		}
	}
}
