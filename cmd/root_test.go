package cmd

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := rootCmd()

	var got []string
	for _, c := range root.Commands() {
		got = append(got, c.Name())
	}
	slices.Sort(got)

	want := []string{"auth", "config", "demo", "log", "metrics", "process"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("subcommands mismatch (-want +got):\n%s", diff)
	}
}
