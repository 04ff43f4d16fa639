package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pdevo/pkg/pdevo"
)

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List registered strategy kinds",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			kinds := pdevo.Kinds()
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), kinds)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tEVOLVES\tDESCRIPTION")
			for _, kind := range kinds {
				evolves := "yes"
				if !kind.Constructible {
					evolves = "no"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", kind.Name, evolves, kind.Description)
			}
			return w.Flush()
		},
	}
}
