package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/instance"
)

var instancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "Inspect persisted instances",
}

var instancesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the persisted instance list",
	Args:  cobra.NoArgs,
	RunE:  runInstancesList,
}

func init() {
	instancesListCmd.Flags().StringP("output", "o", "table", "Output format (table, json)")
	instancesCmd.AddCommand(instancesListCmd)
}

func runInstancesList(cmd *cobra.Command, args []string) error {
	store := instance.NewTOMLStore(viper.GetString("instances.file"))
	descriptors, err := store.Load()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	format, _ := cmd.Flags().GetString("output")
	switch format {
	case "json":
		if descriptors == nil {
			descriptors = []instance.Descriptor{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(descriptors)
	case "table":
		if len(descriptors) == 0 {
			fmt.Fprintf(out, "No instances in %s\n", store.Path())
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTYPE\tNAME\tPORT\tAUTOSTART")
		for _, d := range descriptors {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\n", d.ID, d.Type, d.Name, d.Port, d.Autostart)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
