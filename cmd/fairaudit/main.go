package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fairface-insight/fairaudit/internal/api"
	"github.com/fairface-insight/fairaudit/internal/app"
	"github.com/fairface-insight/fairaudit/internal/config"
	"github.com/fairface-insight/fairaudit/internal/dataset"
	"github.com/fairface-insight/fairaudit/internal/fairness"
	"github.com/fairface-insight/fairaudit/internal/logging"
	"github.com/fairface-insight/fairaudit/internal/metrics"
)

var (
	// Global flags
	configFile string
	datasetDir string
	verbose    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fairaudit",
		Short: "Fairness audits for face-embedding verification",
		Long: `Runs per-group fairness audits over a reference dataset laid out as
<dataset>/<group>/<identity>/<image>, calibrates adaptive thresholds and
checks single distances against them.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&datasetDir, "dataset", "d", "", "Dataset directory (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose logging")

	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(compareCmd())
	rootCmd.AddCommand(groupsCmd())
	rootCmd.AddCommand(cacheCmd())
	return rootCmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if datasetDir != "" {
		cfg.DatasetPath = datasetDir
	}
	return cfg, nil
}

// newApp builds the engine with console logging on stderr so stdout stays
// machine readable.
func newApp(cfg *config.Config) (*app.App, error) {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.NewLogger(logging.Config{Format: "console", Level: level, Output: os.Stderr})
	if err != nil {
		return nil, err
	}
	return app.New(cfg, logger, metrics.NewWithRegistry(prometheus.NewRegistry()))
}

func auditCmd() *cobra.Command {
	var (
		threshold  float64
		maxPairs   int
		seed       int64
		preprocess bool
		outFile    string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run a fairness audit over every configured group",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			req := a.Engine.DefaultRequest()
			if cmd.Flags().Changed("threshold") {
				req.Threshold = threshold
			}
			if cmd.Flags().Changed("max-pairs") {
				req.MaxPairs = maxPairs
			}
			if cmd.Flags().Changed("seed") {
				req.Seed = seed
			}
			req.UsePreprocessing = preprocess

			result, err := a.Engine.RunAudit(cmd.Context(), req)
			if err != nil {
				return err
			}

			if outFile != "" {
				if err := writeJSON(outFile, result); err != nil {
					return err
				}
				a.Logger.Info("audit result saved", zap.String("path", outFile))
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printSummary(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Standard threshold for this run")
	cmd.Flags().IntVar(&maxPairs, "max-pairs", 0, "Pairs kept per kind and group (0 keeps all)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Sampling seed")
	cmd.Flags().BoolVar(&preprocess, "preprocess", false, "Also embed illumination-normalized variants")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Write the full result as JSON to this file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	return cmd
}

func compareCmd() *cobra.Command {
	var (
		group       string
		distance    float64
		adaptive    bool
		auditResult string
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Decide whether a distance is a match for a group",
		Long: `Checks a cosine distance against the group's adaptive threshold from a
saved audit result (--audit-result), falling back to the standard threshold
when no calibrated value exists for the group.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if auditResult != "" {
				saved, err := readAuditResult(auditResult)
				if err != nil {
					return err
				}
				a.Engine.RestoreThresholds(saved.AdaptiveThresholds)
			}

			decision := a.Engine.CompareThreshold(group, distance, adaptive)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(decision)
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "Demographic group")
	cmd.Flags().Float64Var(&distance, "distance", 0, "Cosine distance of the pair")
	cmd.Flags().BoolVar(&adaptive, "adaptive", true, "Use the group's adaptive threshold when available")
	cmd.Flags().StringVar(&auditResult, "audit-result", "", "Audit result JSON written by 'fairaudit audit --out'")
	_ = cmd.MarkFlagRequired("distance")
	return cmd
}

func groupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List the identities the audit would sample per group",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "GROUP\tIDENTITIES\tIMAGES\tSTATUS")
			for _, group := range cfg.Groups {
				rng := fairness.NewGroupRand(cfg.Seed, group)
				ids, err := dataset.Collect(filepath.Join(cfg.DatasetPath, group), cfg.MaxIdentitySamples, rng)
				if err != nil {
					fmt.Fprintf(w, "%s\t-\t-\t%v\n", group, err)
					continue
				}
				fmt.Fprintf(w, "%s\t%d\t%d\tok\n", group, len(ids), ids.ImageCount())
			}
			return w.Flush()
		},
	}
	return cmd
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Embedding cache maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Drop every cached embedding in the configured backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Engine.ResetCache(cmd.Context()); err != nil {
				return fmt.Errorf("failed to reset cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Embedding cache (%s) cleared\n", cfg.CacheBackend)
			return nil
		},
	})
	return cmd
}

func printSummary(out io.Writer, result *api.AuditResult) {
	fmt.Fprintf(out, "=== Fairness Audit %s ===\n", result.AuditID)
	fmt.Fprintf(out, "Threshold: %.4f  Target FPR: %.4f  Seed: %d  Max pairs: %d\n\n",
		result.Threshold, result.TargetFPR, result.Seed, result.MaxPairs)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tIDS\tGENUINE\tIMPOSTOR\tBAL.ACC\tADAPTIVE\tBAL.ACC(ADAPT)\tSTATUS")
	for _, g := range result.Groups {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%.4f\t%s\t%s\n",
			g.Group, g.IdentityCount, g.GenuinePairs, g.ImpostorPairs,
			formatRate(g.Baseline.BalancedAccuracy), g.AdaptiveThreshold,
			formatRate(g.Mitigated.BalancedAccuracy), g.Interpretation.Status)
	}
	w.Flush()

	for _, s := range result.Skipped {
		fmt.Fprintf(out, "skipped %s: %s\n", s.Group, s.Reason)
	}
	fmt.Fprintf(out, "\nFairness score: baseline %d, adaptive %d\n",
		result.Score.Baseline.Score, result.Score.Mitigated.Score)
}

func formatRate(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", *v)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func readAuditResult(path string) (*api.AuditResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit result: %w", err)
	}
	var result api.AuditResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse audit result %s: %w", path, err)
	}
	return &result, nil
}
