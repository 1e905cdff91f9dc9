package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"multiverse/adapters/excel"
	"multiverse/adapters/hclexpr"
	"multiverse/adapters/ols"
	"multiverse/app"
	"multiverse/domain/frame"
	"multiverse/domain/grid"
	"multiverse/domain/result"
	"multiverse/internal/api"
	"multiverse/internal/config"
	"multiverse/internal/testkit"
)

func main() {
	// Optional .env; absence is fine.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "multiverse",
		Short: "Multiverse analysis engine: expand decision grids and fit every pipeline",
	}

	rootCmd.AddCommand(
		newCountCmd(),
		newGridCmd(),
		newExclusionsCmd(),
		newRunCmd(),
		newServeCmd(),
		newGenerateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newService(cfg *config.Config) *app.Multiverse {
	return app.NewMultiverse(hclexpr.New(), ols.NewFitterWithConfidence(cfg.Run.ConfLevel))
}

// loadDataset reads the configured file, or generates the synthetic study
// dataset when no file is configured.
func loadDataset(cfg *config.Config, override string) (*frame.Frame, error) {
	path := override
	if path == "" {
		path = cfg.Data.DatasetFile
	}
	if path != "" {
		return excel.NewDataReader(path).Read()
	}
	return testkit.NewStudyDataGenerator(testkit.DefaultStudyConfig()).Generate()
}

func loadSpec(file string) (app.BlueprintSpec, error) {
	var spec app.BlueprintSpec
	raw, err := os.ReadFile(file)
	if err != nil {
		return spec, fmt.Errorf("failed to read blueprint spec: %w", err)
	}
	if err := json.Unmarshal(raw, &spec); err != nil {
		return spec, fmt.Errorf("invalid blueprint spec %s: %w", file, err)
	}
	return spec, nil
}

func newCountCmd() *cobra.Command {
	var dataFile string

	cmd := &cobra.Command{
		Use:   "count [spec.json]",
		Short: "Size the decision product without running anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			data, err := loadDataset(cfg, dataFile)
			if err != nil {
				return err
			}
			spec, err := loadSpec(args[0])
			if err != nil {
				return err
			}

			svc := newService(cfg)
			bp := spec.Build(data)
			total, err := svc.TotalCount(bp)
			if err != nil {
				return err
			}
			fmt.Printf("🌌 %d pipelines (%d filter toggles) over %d rows\n",
				total, svc.FilterFactorCount(bp), data.Rows())
			return nil
		},
	}

	cmd.Flags().StringVar(&dataFile, "data", "", "Dataset file (xlsx or csv)")
	return cmd
}

func newGridCmd() *cobra.Command {
	var dataFile string
	var stage string

	cmd := &cobra.Command{
		Use:   "grid [spec.json]",
		Short: "Materialize the grid and print each pipeline's stage code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			data, err := loadDataset(cfg, dataFile)
			if err != nil {
				return err
			}
			spec, err := loadSpec(args[0])
			if err != nil {
				return err
			}

			g, err := newService(cfg).Expand(spec.Build(data))
			if err != nil {
				return err
			}
			fmt.Printf("grid %s (%d pipelines)\n", g.Hash, g.Len())
			for _, p := range g.Pipelines {
				code, err := p.Code(grid.Stage(stage))
				if err != nil {
					return err
				}
				fmt.Printf("  #%d  %s\n", p.ID, code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataFile, "data", "", "Dataset file (xlsx or csv)")
	cmd.Flags().StringVar(&stage, "stage", "model", "Stage code to show: filter|preprocess|model|postprocess")
	return cmd
}

func newExclusionsCmd() *cobra.Command {
	var dataFile string

	cmd := &cobra.Command{
		Use:   "exclusions [spec.json]",
		Short: "Show what each filter predicate alone would remove",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			data, err := loadDataset(cfg, dataFile)
			if err != nil {
				return err
			}
			spec, err := loadSpec(args[0])
			if err != nil {
				return err
			}

			summary, err := newService(cfg).FilterExclusionSummary(spec.Build(data))
			if err != nil {
				return err
			}
			for _, s := range summary {
				fmt.Printf("  %-40s removes %4d, keeps %4d\n", s.Predicate, s.Removed, s.Kept)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataFile, "data", "", "Dataset file (xlsx or csv)")
	return cmd
}

func newRunCmd() *cobra.Command {
	var dataFile string
	var mode string
	var outFile string
	var paramSelector string

	cmd := &cobra.Command{
		Use:   "run [spec.json]",
		Short: "Run every pipeline and print the multiverse summary",
		Long: `Expand the blueprint spec into its full decision grid, fit every
resolved pipeline in parallel, and print the condensed summary: the median
estimate and the share of significant p-values per model parameter.

Example: multiverse run study_spec.json --data study.xlsx --out results.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			data, err := loadDataset(cfg, dataFile)
			if err != nil {
				return err
			}
			spec, err := loadSpec(args[0])
			if err != nil {
				return err
			}

			svc := newService(cfg)
			g, err := svc.Expand(spec.Build(data))
			if err != nil {
				return err
			}

			started := time.Now()
			report, err := svc.RunMultiverse(cmd.Context(), g, app.RunOptions{
				Workers:    cfg.Run.Workers,
				FitTimeout: cfg.Run.FitTimeout,
			})
			if err != nil {
				return err
			}

			unpack := result.Wide
			if mode == string(result.Long) {
				unpack = result.Long
			}
			rows, err := app.Reveal(g, report.Records, unpack, paramSelector)
			if err != nil {
				return err
			}

			fmt.Printf("🌌 MULTIVERSE RUN %s\n", report.RunID)
			fmt.Printf("Pipelines: %d (%d failed) in %v\n",
				len(report.Records), report.Failed, time.Since(started).Round(time.Millisecond))

			medians, err := app.Condense(rows, "estimate", app.Median())
			if err != nil {
				return err
			}
			sig, err := app.Condense(rows, "p_value", app.PropBelow(0.05))
			if err != nil {
				return err
			}
			fmt.Printf("\n%-24s %12s %10s %6s\n", "PARAMETER", "MED EST", "P<.05", "N")
			for i, m := range medians {
				fmt.Printf("%-24s %12.4f %9.0f%% %6d\n", m.Parameter, m.Value, sig[i].Value*100, m.N)
			}

			if outFile != "" {
				if err := excel.NewResultWriter(outFile).Write(rows, medians); err != nil {
					return err
				}
				fmt.Printf("\n📊 results written to %s\n", outFile)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataFile, "data", "", "Dataset file (xlsx or csv)")
	cmd.Flags().StringVar(&mode, "mode", "wide", "Unpack mode: wide|long")
	cmd.Flags().StringVar(&paramSelector, "params", "", "Comma-separated glob over parameter names (default: all)")
	cmd.Flags().StringVar(&outFile, "out", "", "Write tidy results to an xlsx workbook")
	return cmd
}

func newServeCmd() *cobra.Command {
	var dataFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine over JSON HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			data, err := loadDataset(cfg, dataFile)
			if err != nil {
				return err
			}

			server := api.NewServer(newService(cfg), data, cfg.Run)
			addr := ":" + cfg.Server.Port
			fmt.Printf("Serving multiverse API on %s (%d rows loaded)\n", addr, data.Rows())
			return http.ListenAndServe(addr, server.Router())
		},
	}

	cmd.Flags().StringVar(&dataFile, "data", "", "Dataset file (xlsx or csv)")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	var participants int
	var seed int64

	cmd := &cobra.Command{
		Use:   "generate [out.csv]",
		Short: "Generate a synthetic study dataset for experimentation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := testkit.DefaultStudyConfig()
			cfg.Participants = participants
			cfg.Seed = seed
			data, err := testkit.NewStudyDataGenerator(cfg).Generate()
			if err != nil {
				return err
			}
			if err := writeCSV(args[0], data); err != nil {
				return err
			}
			fmt.Printf("🔬 wrote %d rows x %d columns to %s\n", data.Rows(), len(data.Names()), args[0])
			return nil
		},
	}

	cmd.Flags().IntVar(&participants, "participants", 200, "Number of participants")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic generation")
	return cmd
}

func writeCSV(path string, data *frame.Frame) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	names := data.Names()
	if err := w.Write(names); err != nil {
		return err
	}
	for i := 0; i < data.Rows(); i++ {
		record := make([]string, len(names))
		for j, name := range names {
			if vals, ok := data.Numeric(name); ok {
				if math.IsNaN(vals[i]) {
					record[j] = ""
				} else {
					record[j] = strconv.FormatFloat(vals[i], 'g', -1, 64)
				}
			} else if labels, ok := data.Labels(name); ok {
				record[j] = labels[i]
			}
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}
