package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"deal_valuation/pkg/core/report"
	"deal_valuation/pkg/core/valuation"
)

var (
	runMonteCarlo bool
	runIterations int
	runSeed       uint64
	runLBO        bool
	runJSON       bool
	runNoSave     bool

	sensWACCs  []float64
	sensGrowth []float64
)

var runCmd = &cobra.Command{
	Use:   "run [company_id]",
	Short: "Run a comprehensive valuation",
	Long:  `Runs every applicable method for the company, stores the result and prints a Markdown summary (or JSON with --json).`,
	Args:  cobra.ExactArgs(1),
	RunE:  runValuation,
}

var sensitivityCmd = &cobra.Command{
	Use:   "sensitivity [company_id]",
	Short: "Print DCF (and LBO) sensitivity grids",
	Args:  cobra.ExactArgs(1),
	RunE:  runSensitivity,
}

var monteCarloCmd = &cobra.Command{
	Use:   "montecarlo [company_id]",
	Short: "Simulate the DCF value distribution",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimulation,
}

func init() {
	runCmd.Flags().BoolVar(&runMonteCarlo, "monte-carlo", false, "Include a Monte Carlo simulation")
	runCmd.Flags().IntVar(&runIterations, "iterations", 0, "Monte Carlo iterations (default from config)")
	runCmd.Flags().Uint64Var(&runSeed, "seed", 0, "Monte Carlo seed for reproducible runs")
	runCmd.Flags().BoolVar(&runLBO, "lbo", false, "Include an LBO with default sponsor terms")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the full valuation as JSON")
	runCmd.Flags().BoolVar(&runNoSave, "no-save", false, "Do not store the result")

	sensitivityCmd.Flags().Float64SliceVar(&sensWACCs, "wacc", nil, "Discount rates for the grid rows")
	sensitivityCmd.Flags().Float64SliceVar(&sensGrowth, "growth", nil, "Terminal growth rates for the grid columns")
	sensitivityCmd.Flags().BoolVar(&runLBO, "lbo", false, "Include the LBO grid with default sponsor terms")

	monteCarloCmd.Flags().IntVar(&runIterations, "iterations", 0, "Iterations (default from config)")
	monteCarloCmd.Flags().Uint64Var(&runSeed, "seed", 0, "Seed for reproducible runs")
}

func baseRequest(companyID string) valuation.Request {
	req := valuation.Request{CompanyID: companyID}
	if runLBO {
		terms := valuation.DefaultLBOTerms()
		req.LBO = &terms
	}
	return req
}

func monteCarloConfig(cmd *cobra.Command, req valuation.Request) (*valuation.MonteCarloConfig, error) {
	prep, err := services.Engine.Prepare(cmd.Context(), req)
	if err != nil {
		return nil, err
	}
	cfg := valuation.DefaultMonteCarloConfig(prep.Assumptions, runIterations, runSeed)
	return &cfg, nil
}

func runValuation(cmd *cobra.Command, args []string) error {
	req := baseRequest(args[0])
	if runMonteCarlo {
		mc, err := monteCarloConfig(cmd, req)
		if err != nil {
			return err
		}
		req.MonteCarlo = mc
	}

	cv, err := services.Engine.Run(cmd.Context(), req)
	if err != nil {
		return err
	}
	if !runNoSave {
		if err := services.Valuations.Save(cmd.Context(), cv); err != nil {
			return fmt.Errorf("save valuation: %w", err)
		}
		logger.Info().Str("id", cv.ID).Msg("valuation stored")
	}

	if runJSON {
		return printJSON(cmd.OutOrStdout(), cv)
	}
	md, err := report.Markdown(report.Bundle{Valuation: cv})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), md)
	fmt.Fprintf(cmd.OutOrStdout(), "Valuation ID: %s\n", cv.ID)
	return nil
}

func runSensitivity(cmd *cobra.Command, args []string) error {
	rep, err := services.Engine.Sensitivity(cmd.Context(), valuation.SensitivityRequest{
		Request:        baseRequest(args[0]),
		WACCs:          sensWACCs,
		TerminalGrowth: sensGrowth,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), rep)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	req := baseRequest(args[0])
	if runSeed != 0 {
		mc, err := monteCarloConfig(cmd, req)
		if err != nil {
			return err
		}
		req.MonteCarlo = mc
	}
	res, err := services.Engine.Simulate(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}
