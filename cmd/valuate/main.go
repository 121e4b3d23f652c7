package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"deal_valuation/pkg/app"
	"deal_valuation/pkg/core/config"
	"deal_valuation/pkg/core/logging"
)

var (
	configPath   string
	companiesDir string
	logLevel     string
	noLLM        bool

	logger   *log.Logger
	services *app.App
)

var rootCmd = &cobra.Command{
	Use:           "valuate",
	Short:         "Value a company and build offer scenarios from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if noLLM {
			cfg.LLM.Disabled = true
		}
		logger = logging.New(cfg.Logging)
		services, err = app.Build(cmd.Context(), cfg, logger, app.Options{CompaniesDir: companiesDir})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if services != nil {
			services.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/app.yaml", "Application config file")
	rootCmd.PersistentFlags().StringVar(&companiesDir, "companies", "data/companies", "Directory of company snapshot files")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&noLLM, "no-llm", false, "Use templated narratives instead of calling a model")

	rootCmd.AddCommand(runCmd, sensitivityCmd, monteCarloCmd, offersCmd, exportCmd)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
