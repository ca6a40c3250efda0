package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/cameye/cameye/internal/service"
)

func TestExitStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrapped: %w", service.ErrRequirement), exitRequirement},
		{fmt.Errorf("%w (pid 7)", service.ErrAlreadyRunning), exitAlreadyRunning},
		{service.ErrNotRunning, exitNotRunning},
		{fmt.Errorf("%w: fork failed", errSpawn), exitSpawnFailure},
		{fmt.Errorf("%w (pid 7)", service.ErrForcedKill), exitForcedKill},
		{errors.New("anything else"), exitFailure},
	}
	for _, tc := range cases {
		if got := exitStatus(tc.err); got != tc.want {
			t.Fatalf("exitStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestRootHasExpectedCommands(t *testing.T) {
	root := buildRoot()
	want := map[string]bool{"start": false, "stop": false, "status": false, "version": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Fatalf("command %q missing", name)
		}
	}
}

func TestStartCommandHasBackgroundFlag(t *testing.T) {
	root := buildRoot()
	for _, c := range root.Commands() {
		if c.Name() != "start" {
			continue
		}
		f := c.Flags().Lookup("background")
		if f == nil || f.Shorthand != "b" {
			t.Fatalf("background flag wrong: %+v", f)
		}
		return
	}
	t.Fatal("start command missing")
}
