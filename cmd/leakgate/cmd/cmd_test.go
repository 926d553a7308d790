package cmd

import (
	"testing"
)

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{
		"audit":   false,
		"watch":   false,
		"report":  false,
		"doctor":  false,
		"version": false,
	}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestExitError(t *testing.T) {
	err := &exitError{code: 2}
	if err.Error() != "exit 2" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2025-01-01")
	if appVersion != "1.2.3" || appCommit != "abc123" || appDate != "2025-01-01" {
		t.Fatal("version info not applied")
	}
}
