package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"admeasure/internal/config"
	"admeasure/internal/core/runner"
	"admeasure/internal/core/strategy"
	"admeasure/internal/logger"
)

func main() {
	root := &cobra.Command{
		Use:           "admeasure",
		Short:         "Consent-aware web measurement runner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(runCmd(), testStrategyCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var planPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a measurement plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New("main")
			cfg := config.Load()

			plan, err := config.LoadPlan(planPath)
			if err != nil {
				return err
			}
			if plan.Locale == "" {
				plan.Locale = config.LocaleForRegion(plan.Region)
			}
			if plan.Timezone == "" {
				plan.Timezone = config.TimezoneForRegion(plan.Region)
			}

			return runner.New(log, cfg, plan).Run()
		},
	}

	cmd.Flags().StringVarP(&planPath, "plan", "p", "", "path to the measurement plan (JSON or YAML)")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

// testStrategyCmd visits a single URL with every artifact enabled. Meant for
// developing interaction strategies against a live site without writing a
// plan file first.
func testStrategyCmd() *cobra.Command {
	var (
		url         string
		strategyArg string
		browserType string
		region      string
	)

	cmd := &cobra.Command{
		Use:   "test-strategy",
		Short: "Run one measure visit against a URL and keep all artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := strategy.Lookup(strategyArg); !ok {
				return fmt.Errorf("unknown strategy %q", strategyArg)
			}

			log := logger.New("main")
			cfg := config.Load()

			headless := false
			plan := &config.MeasurementPlan{
				Version: 3,
				ID:      fmt.Sprintf("test-%d", time.Now().Unix()),
				Region:  region,
				Device: &config.Device{
					Type:    browserType,
					Options: config.DeviceOptions{Headless: &headless},
				},
				Locale:   config.LocaleForRegion(region),
				Timezone: config.TimezoneForRegion(region),
				Log: config.LogFlags{
					Screenshot:        "full",
					Contents:          true,
					Cookies:           true,
					AccessibilityTree: true,
					Har:               true,
					Console:           true,
				},
				Measure: config.JobConfig{URLs: []string{url}, Strategy: strategyArg},
			}

			r := runner.New(log, cfg, plan)
			if err := r.Run(); err != nil {
				return err
			}

			visitDir := filepath.Join(r.RunDir(), "measure-00")
			entries, err := os.ReadDir(visitDir)
			if err != nil {
				return err
			}
			fmt.Println("Artifacts:")
			for _, e := range entries {
				fmt.Println(" ", filepath.Join(visitDir, e.Name()))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&url, "url", "u", "", "URL to visit")
	cmd.Flags().StringVarP(&strategyArg, "strategy", "s", "idle", "interaction strategy")
	cmd.Flags().StringVarP(&browserType, "browser", "b", "chromium", "browser engine (chromium, firefox, webkit)")
	cmd.Flags().StringVarP(&region, "region", "r", "", "region used for locale and timezone defaults")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
