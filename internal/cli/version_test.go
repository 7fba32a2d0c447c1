package cli

import "testing"

func TestVersionDefaults(t *testing.T) {
	if version == "" {
		t.Error("version should never be empty")
	}
	if commit == "" || date == "" {
		t.Error("commit and date should carry defaults when not set via ldflags")
	}
}

func TestVersionCmd_Registered(t *testing.T) {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "version" {
			return
		}
	}
	t.Error("version command not registered on root")
}
