package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v3"

	"github.com/tickfold/tickfold/internal/runner"
	"github.com/tickfold/tickfold/pkg/config"
	"github.com/tickfold/tickfold/pkg/resample"
)

var version = "0.1.0"

// requestFile is the YAML shape of a batched request specification.
type requestFile struct {
	Requests []resample.Request `yaml:"requests"`
}

func main() {
	root := &cobra.Command{
		Use:   "tickfold",
		Short: "Tickfold - time-bucketed resampling over columnar segments",
		Long: `Tickfold resamples columnar time-series data into fixed-duration buckets,
aggregating across segment and dtype boundaries with sum, mean, min, max,
first, last and count.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tickfold v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(newInspectCmd())
	root.AddCommand(newResampleCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadRunner(configPath, input, inputFormat string) (*runner.Runner, error) {
	cfg := config.Default()
	if configPath != "" {
		if err := config.Load(configPath, cfg); err != nil {
			return nil, err
		}
	}
	r, err := runner.New(cfg)
	if err != nil {
		return nil, err
	}
	format, err := runner.FormatFor(input, inputFormat)
	if err != nil {
		return nil, err
	}
	if err := r.LoadDataset(input, format); err != nil {
		return nil, err
	}
	return r, nil
}

func newInspectCmd() *cobra.Command {
	var (
		configPath  string
		inputFormat string
	)
	cmd := &cobra.Command{
		Use:   "inspect <dataset>",
		Short: "Describe the symbols, segments and ranges of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := loadRunner(configPath, args[0], inputFormat)
			if err != nil {
				return err
			}
			defer func() { _ = r.Close(context.Background()) }()

			infos, err := r.Inspect()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(infos, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "configuration file")
	cmd.Flags().StringVar(&inputFormat, "input-format", "", "dataset format (json, arrow); inferred from extension when empty")
	return cmd
}

func newResampleCmd() *cobra.Command {
	var (
		configPath   string
		inputFormat  string
		requestsPath string
		output       string
		outputFormat string
		timeout      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "resample <dataset>",
		Short: "Evaluate resample requests against a dataset",
		Long: `Evaluate one or more resample requests against a dataset. Requests are
read from a YAML file:

    requests:
      - symbol: trades
        rule: 5min
        closed: left
        label: left
        origin: start_day
        aggregations:
          volume: {column: qty, op: sum}
          trades: {column: qty, op: count}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(requestsPath) //nolint:gosec // G304: path is operator-controlled
			if err != nil {
				return fmt.Errorf("failed to read requests file: %w", err)
			}
			var rf requestFile
			if err := yaml.Unmarshal(data, &rf); err != nil {
				return fmt.Errorf("failed to parse requests file: %w", err)
			}
			if len(rf.Requests) == 0 {
				return fmt.Errorf("requests file %q holds no requests", requestsPath)
			}

			r, err := loadRunner(configPath, args[0], inputFormat)
			if err != nil {
				return err
			}
			defer func() { _ = r.Close(context.Background()) }()

			ctx := context.Background()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			format, err := runner.FormatFor(output, outputFormat)
			if err != nil {
				return err
			}

			results := r.RunBatch(ctx, rf.Requests)
			var failed int
			for i, res := range results {
				if res.Err != nil {
					failed++
					fmt.Fprintf(os.Stderr, "request %d (%s): %v\n", i, rf.Requests[i].Symbol, res.Err)
					continue
				}
				path := output
				if path != "" && len(results) > 1 {
					path = fmt.Sprintf("%s.%d", output, i)
				}
				if err := runner.WriteTable(path, res.Table, format); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d requests failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "configuration file")
	cmd.Flags().StringVar(&inputFormat, "input-format", "", "dataset format (json, arrow); inferred from extension when empty")
	cmd.Flags().StringVarP(&requestsPath, "requests", "r", "", "YAML file of resample requests (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path; stdout when empty")
	cmd.Flags().StringVar(&outputFormat, "output-format", "json", "result format (json, arrow, parquet, avro)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "overall evaluation timeout")
	_ = cmd.MarkFlagRequired("requests")
	return cmd
}
