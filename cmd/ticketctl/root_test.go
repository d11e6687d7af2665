package main

import (
	"testing"
)

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"migrate", "seed"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("Find(%q) = %v, %v", name, cmd, err)
		}
	}
}

func TestMigrateRequiresDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	root := newRootCmd()
	root.SetArgs([]string{"migrate"})
	root.SilenceErrors = true
	if err := root.Execute(); err == nil {
		t.Fatalf("expected error without POSTGRES_DSN")
	}
}
