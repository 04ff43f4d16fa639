package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"pdevo/internal/config"
	"pdevo/internal/logging"
	"pdevo/pkg/pdevo"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an evolutionary tournament",
		Long: `Run builds a population from --kind Name=count flags (or the config file)
and evolves it generation by generation.

With --interactive the run pauses after every generation:
  N  run the next generation
  F  run to completion without asking again
Any other answer stops the run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := loadConfig(cmd, configPath)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			interactive, _ := cmd.Flags().GetBool("interactive")
			runID, _ := cmd.Flags().GetString("run-id")
			jsonOut, _ := cmd.Flags().GetBool("json")

			return executeRun(cmd.Context(), cfg, runOptions{
				runID:       runID,
				interactive: interactive,
				jsonOut:     jsonOut,
				in:          cmd.InOrStdin(),
				out:         cmd.OutOrStdout(),
				errOut:      cmd.ErrOrStderr(),
			})
		},
	}

	cmd.Flags().String("config", "", "YAML run configuration")
	cmd.Flags().StringArray("kind", nil, "Initial population entry Name=count (repeatable, replaces the configured population)")
	cmd.Flags().Int("min-rounds", 0, "Minimum rounds per game (inclusive)")
	cmd.Flags().Int("max-rounds", 0, "Maximum rounds per game (exclusive)")
	cmd.Flags().Float64("weight", 0, "Fixed discount weight in [0, 1]")
	cmd.Flags().Bool("random-weight", false, "Draw a fresh weight for every game")
	cmd.Flags().Int64("seed", 0, "Random seed")
	cmd.Flags().Bool("random-seed", false, "Seed from the clock")
	cmd.Flags().Float64("exploit-comply", 0, "Payoff for exploiting a complier")
	cmd.Flags().Float64("comply-exploit", 0, "Payoff for complying against an exploiter")
	cmd.Flags().Float64("comply-comply", 0, "Payoff for mutual compliance")
	cmd.Flags().Float64("exploit-exploit", 0, "Payoff for mutual exploitation")
	cmd.Flags().Int("generations", 0, "Generations to run (0 runs until stopped)")
	cmd.Flags().Bool("interactive", false, "Prompt after every generation")
	cmd.Flags().String("metrics-addr", "", "Serve prometheus metrics on this address")
	cmd.Flags().String("run-id", "", "Run identifier (default: random UUID)")

	return cmd
}

func applyRunFlags(cmd *cobra.Command, cfg *config.RunConfig) error {
	flags := cmd.Flags()

	if flags.Changed("kind") {
		entries, _ := flags.GetStringArray("kind")
		population, err := parseKindCounts(entries)
		if err != nil {
			return err
		}
		cfg.Population = population
	}
	if flags.Changed("min-rounds") {
		cfg.MinRounds, _ = flags.GetInt("min-rounds")
	}
	if flags.Changed("max-rounds") {
		cfg.MaxRounds, _ = flags.GetInt("max-rounds")
	}
	if flags.Changed("weight") && flags.Changed("random-weight") {
		return errors.New("cannot specify both --weight and --random-weight")
	}
	if flags.Changed("weight") {
		cfg.Weight, _ = flags.GetFloat64("weight")
		cfg.RandomWeight = false
	}
	if flags.Changed("random-weight") {
		cfg.RandomWeight, _ = flags.GetBool("random-weight")
	}
	if flags.Changed("seed") && flags.Changed("random-seed") {
		return errors.New("cannot specify both --seed and --random-seed")
	}
	if flags.Changed("seed") {
		cfg.Seed, _ = flags.GetInt64("seed")
		cfg.RandomSeed = false
	}
	if flags.Changed("random-seed") {
		cfg.RandomSeed, _ = flags.GetBool("random-seed")
	}
	payoffFlags := []struct {
		name   string
		target *float64
	}{
		{"exploit-comply", &cfg.Payoffs.ExploitComply},
		{"comply-exploit", &cfg.Payoffs.ComplyExploit},
		{"comply-comply", &cfg.Payoffs.ComplyComply},
		{"exploit-exploit", &cfg.Payoffs.ExploitExploit},
	}
	for _, pf := range payoffFlags {
		if flags.Changed(pf.name) {
			*pf.target, _ = flags.GetFloat64(pf.name)
		}
	}
	if flags.Changed("generations") {
		cfg.Generations, _ = flags.GetInt("generations")
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr, _ = flags.GetString("metrics-addr")
	}
	return nil
}

// parseKindCounts turns Name=count entries into a population mapping.
// Repeated names accumulate.
func parseKindCounts(entries []string) (map[string]int, error) {
	population := make(map[string]int, len(entries))
	for _, entry := range entries {
		name, rawCount, ok := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --kind %q: expected Name=count", entry)
		}
		count, err := strconv.Atoi(strings.TrimSpace(rawCount))
		if err != nil {
			return nil, fmt.Errorf("invalid --kind %q: %w", entry, err)
		}
		if count < 0 {
			return nil, fmt.Errorf("invalid --kind %q: count must be >= 0", entry)
		}
		population[name] += count
	}
	return population, nil
}

type runOptions struct {
	runID       string
	interactive bool
	jsonOut     bool
	in          io.Reader
	out         io.Writer
	errOut      io.Writer
}

func executeRun(ctx context.Context, cfg *config.RunConfig, opts runOptions) error {
	logger := logging.NewLogger(cfg.Logging.Level, opts.errOut)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if cfg.Metrics.Addr != "" {
		stop, err := serveMetrics(cfg.Metrics.Addr, reg, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	client, err := newClient(cfg, logger, reg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	ec := cfg.EngineConfig(nil)
	req := pdevo.RunRequest{
		RunID:       opts.runID,
		Population:  ec.Initial,
		MinRounds:   ec.MinRounds,
		MaxRounds:   ec.MaxRounds,
		Weight:      ec.Weight,
		Seed:        ec.Seed,
		Payoffs:     ec.Payoffs,
		Generations: cfg.Generations,
	}
	if !opts.jsonOut {
		req.Observer = generationPrinter{out: opts.out}
	}
	if opts.interactive {
		req.Continue = newPrompt(opts.in, opts.out).Continue
	}

	summary, err := client.Run(ctx, req)
	if opts.jsonOut && summary.RunID != "" {
		if writeErr := writeJSON(opts.out, summary); writeErr != nil && err == nil {
			err = writeErr
		}
	} else if summary.RunID != "" {
		fmt.Fprintf(opts.out, "run %s %s after %s generations (seed %d)\n",
			summary.RunID, summary.StopReason, humanize.Comma(int64(summary.Generations)), summary.Seed)
		fmt.Fprintln(opts.out, formatCounts(summary.Population))
	}
	return err
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// generationPrinter writes one line per finished generation.
type generationPrinter struct {
	out io.Writer
}

func (p generationPrinter) ObserveGame(pdevo.GameRecord) {}

func (p generationPrinter) ObserveGeneration(report pdevo.GenerationReport) {
	fmt.Fprintf(p.out, "generation %s: %s best=%s (%s)\n",
		humanize.Comma(int64(report.Generation)),
		formatCounts(report.CountsAfter),
		humanize.CommafWithDigits(report.BestScore, 2),
		report.BestKind,
	)
}

func formatCounts(counts map[string]int) string {
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%s", kind, humanize.Comma(int64(counts[kind]))))
	}
	return strings.Join(parts, " ")
}

// prompt asks after each generation whether to go on. The first generation
// always runs. N runs one more, F runs to the end without asking again and
// any other answer, including an empty line or end of input, quits.
type prompt struct {
	in     *bufio.Scanner
	out    io.Writer
	finish bool
}

func newPrompt(in io.Reader, out io.Writer) *prompt {
	return &prompt{in: bufio.NewScanner(in), out: out}
}

func (p *prompt) Continue(completed int) bool {
	if completed == 0 || p.finish {
		return true
	}
	fmt.Fprintf(p.out, "%d generations done. [N]ext, [Q]uit, [F]inish: ", completed)
	if !p.in.Scan() {
		fmt.Fprintln(p.out)
		return false
	}
	switch strings.ToUpper(strings.TrimSpace(p.in.Text())) {
	case "N":
		return true
	case "F":
		p.finish = true
		return true
	default:
		return false
	}
}
