package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"pdevo/pkg/pdevo"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List persisted runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			jsonOut, _ := cmd.Flags().GetBool("json")

			client, err := openReadClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			runs, err := client.Runs(cmd.Context(), pdevo.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tCREATED\tGENERATIONS\tSTATUS\tSEED\tWEIGHT\tPOPULATION")
			for _, run := range runs {
				size := 0
				for _, count := range run.InitialPopulation {
					size += count
				}
				weight := strconv.FormatFloat(run.Weight, 'g', -1, 64)
				if run.RandomWeight {
					weight = "random"
				}
				status := run.StopReason
				if status == "" {
					status = "running"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					run.ID,
					humanize.Time(run.CreatedAt),
					humanize.Comma(int64(run.GenerationsCompleted)),
					status,
					run.Seed,
					weight,
					humanize.Comma(int64(size)),
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum runs to list (0 for all)")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the generation reports of a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, _ := cmd.Flags().GetString("run-id")
			latest, _ := cmd.Flags().GetBool("latest")
			limit, _ := cmd.Flags().GetInt("limit")
			jsonOut, _ := cmd.Flags().GetBool("json")

			client, err := openReadClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			reports, err := client.History(cmd.Context(), pdevo.HistoryRequest{RunID: runID, Latest: latest, Limit: limit})
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), reports)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "GEN\tGAMES\tBEST\tMEAN\tMIN\tLEADER\tPOPULATION")
			for _, report := range reports {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					report.Generation,
					humanize.Comma(int64(report.Games)),
					humanize.CommafWithDigits(report.BestScore, 2),
					humanize.CommafWithDigits(report.MeanScore, 2),
					humanize.CommafWithDigits(report.MinScore, 2),
					report.BestKind,
					formatCounts(report.CountsAfter),
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("run-id", "", "Run identifier")
	cmd.Flags().Bool("latest", false, "Use the most recent run")
	cmd.Flags().Int("limit", 0, "Show only the last N generations (0 for all)")
	return cmd
}

func newPopulationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "population",
		Short: "Show a population snapshot of a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, _ := cmd.Flags().GetString("run-id")
			latest, _ := cmd.Flags().GetBool("latest")
			members, _ := cmd.Flags().GetBool("members")
			jsonOut, _ := cmd.Flags().GetBool("json")

			req := pdevo.PopulationRequest{RunID: runID, Latest: latest}
			if cmd.Flags().Changed("generation") {
				generation, _ := cmd.Flags().GetInt("generation")
				req.Generation = &generation
			}

			client, err := openReadClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			snapshot, err := client.Population(cmd.Context(), req)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), snapshot)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s generation %d: %s\n", snapshot.RunID, snapshot.Generation, formatCounts(snapshot.Counts))
			if members {
				for _, member := range snapshot.Members {
					fmt.Fprintf(out, "  %s  %s\n", member.ID, member.Summary)
				}
			}
			return nil
		},
	}
	cmd.Flags().String("run-id", "", "Run identifier")
	cmd.Flags().Bool("latest", false, "Use the most recent run")
	cmd.Flags().Int("generation", 0, "Generation to show (default: newest)")
	cmd.Flags().Bool("members", false, "List every member")
	return cmd
}
