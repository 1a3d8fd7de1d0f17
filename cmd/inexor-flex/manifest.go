package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/connector"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Work with field manifests",
}

var manifestValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a YAML or JSON field manifest",
	Args:  cobra.ExactArgs(1),
	RunE:  runManifestValidate,
}

func init() {
	manifestCmd.AddCommand(manifestValidateCmd)
}

func runManifestValidate(cmd *cobra.Command, args []string) error {
	m, err := connector.LoadManifest(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d fields, %d synchronized\n", m.Source(), len(m.Fields), len(m.Synchronized()))
	for _, f := range m.Fields {
		fmt.Fprintf(out, "  %-24s %-10s %s\n", f.Key, f.Type, f.Path)
	}
	return nil
}
