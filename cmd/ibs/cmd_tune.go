package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/ibs/config"
)

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func newTuneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tune",
		Short: "Search parameters that steer a trait mean to a target",
		Long: `Tune runs CMA-ES over the given parameter ranges. Every evaluation
runs the configured simulation for several seeds and scores the squared
distance between the target and the late mean of the first trait. For
discrete traits that is the mean type index, e.g. the defector share of a
prisoner's dilemma.

Parameters are given as name=min:max, for example
  ibs tune --param game.b=1:3 --param population.selection=0.1:2 --target 0.5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paramArgs, _ := cmd.Flags().GetStringArray("param")
			target, _ := cmd.Flags().GetFloat64("target")
			window, _ := cmd.Flags().GetFloat64("window")
			numSeeds, _ := cmd.Flags().GetInt("seeds")
			maxEvals, _ := cmd.Flags().GetInt("max-evals")
			population, _ := cmd.Flags().GetInt("population")
			outputDir, _ := cmd.Flags().GetString("output")

			if outputDir == "" {
				return errors.New("--output is required")
			}
			if len(paramArgs) == 0 {
				return errors.New("at least one --param is required")
			}
			specs := make([]ParamSpec, len(paramArgs))
			for i, a := range paramArgs {
				var err error
				if specs[i], err = parseParam(a); err != nil {
					return err
				}
			}
			if numSeeds < 1 {
				numSeeds = 1
			}
			if err := os.MkdirAll(outputDir, 0755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}

			ctx := cmd.Context()
			baseCfg := config.Cfg()
			params := NewParamVector(specs, baseCfg)
			seeds := make([]uint64, numSeeds)
			for i := range seeds {
				seeds[i] = baseCfg.Seed + uint64(i)*1000 + 42
			}
			evaluator := NewEvaluator(params, baseCfg, seeds, target, window)

			logPath := filepath.Join(outputDir, "tune_log.csv")
			logFile, err := os.Create(logPath)
			if err != nil {
				return fmt.Errorf("creating log file: %w", err)
			}
			defer logFile.Close()
			logWriter := csv.NewWriter(logFile)
			defer logWriter.Flush()

			header := []string{"eval", "loss", "mean"}
			for _, spec := range params.Specs {
				header = append(header, spec.Name)
			}
			if err := logWriter.Write(header); err != nil {
				return fmt.Errorf("writing log: %w", err)
			}

			dim := params.Dim()
			popSize := population
			if popSize == 0 {
				popSize = 4 + int(3*math.Log(float64(dim)))
			}

			out := cmd.OutOrStdout()
			evalCount := 0
			bestLoss := math.Inf(1)
			var bestParams []float64
			var evalErr error
			startTime := time.Now()

			problem := optimize.Problem{
				Func: func(x []float64) float64 {
					if evalErr != nil || ctx.Err() != nil {
						return math.Inf(1)
					}
					raw := params.Denormalize(x)
					loss, mean, err := evaluator.Evaluate(ctx, raw)
					if err != nil {
						evalErr = err
						return math.Inf(1)
					}
					evalCount++
					if loss < bestLoss {
						bestLoss = loss
						bestParams = raw
					}

					row := []string{strconv.Itoa(evalCount), fmt.Sprintf("%.6g", loss), fmt.Sprintf("%.6g", mean)}
					for _, v := range raw {
						row = append(row, fmt.Sprintf("%.6g", v))
					}
					if err := logWriter.Write(row); err != nil {
						evalErr = fmt.Errorf("writing log: %w", err)
					}
					logWriter.Flush()

					elapsed := time.Since(startTime)
					remaining := time.Duration(maxEvals-evalCount) * (elapsed / time.Duration(evalCount))
					fmt.Fprintf(out, "Eval %d/%d: mean=%.4f loss=%.3g (best=%.3g) | elapsed: %s, ETA: %s\n",
						evalCount, maxEvals, mean, loss, bestLoss, formatDuration(elapsed), formatDuration(remaining))
					return loss
				},
			}
			settings := &optimize.Settings{
				FuncEvaluations: maxEvals,
				Concurrent:      0, // seeds already run in parallel
			}
			method := &optimize.CmaEsChol{
				InitStepSize: 0.3,
				Population:   popSize,
			}

			fmt.Fprintf(out, "Starting CMA-ES with %d parameters, population=%d, max_evals=%d, seeds=%d\n",
				dim, popSize, maxEvals, numSeeds)
			result, err := optimize.Minimize(problem, params.Normalize(params.DefaultVector()), settings, method)
			if err != nil {
				slog.Warn("optimization ended", "error", err)
			}
			if evalErr != nil {
				return evalErr
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if bestParams == nil && result != nil {
				bestParams = params.Denormalize(result.X)
			}
			if bestParams == nil {
				return errors.New("no evaluation completed")
			}

			fmt.Fprintf(out, "\nTuning complete after %d evaluations in %s\n", evalCount, formatDuration(time.Since(startTime)))
			fmt.Fprintf(out, "Best loss: %.4g\n\nBest parameters:\n", bestLoss)
			for i, spec := range params.Specs {
				fmt.Fprintf(out, "  %s: %.6g\n", spec.Name, bestParams[i])
			}

			bestCfg, err := params.Apply(baseCfg, bestParams)
			if err != nil {
				return err
			}
			configOutPath := filepath.Join(outputDir, "best_config.yaml")
			if err := bestCfg.WriteYAML(configOutPath); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nBest config saved to: %s\n", configOutPath)
			return nil
		},
	}

	cmd.Flags().StringArray("param", nil, "Parameter range name=min:max (repeatable)")
	cmd.Flags().Float64("target", 0.5, "Target mean of the first trait")
	cmd.Flags().Float64("window", 0.2, "Trailing fraction of each run that is averaged")
	cmd.Flags().Int("seeds", 3, "Number of seeds per evaluation")
	cmd.Flags().Int("max-evals", 100, "Maximum number of evaluations")
	cmd.Flags().Int("population", 0, "CMA-ES population size (0 = auto)")
	cmd.Flags().String("output", "", "Output directory for the log and best config")

	return cmd
}
