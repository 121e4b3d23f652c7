package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"deal_valuation/pkg/core/offer"
	"deal_valuation/pkg/core/report"
)

var (
	offersLow         float64
	offersHigh        float64
	offersCompany     string
	offersTemplates   []string
	offersAllTemplate bool
	offersJSON        bool
)

var offersCmd = &cobra.Command{
	Use:   "offers [valuation_id]",
	Short: "Generate an offer stack",
	Long: `Generates offer scenarios from a stored valuation, or from an explicit
range with --low, --high and --company.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOffers,
}

func init() {
	offersCmd.Flags().Float64Var(&offersLow, "low", 0, "Low end of the valuation range")
	offersCmd.Flags().Float64Var(&offersHigh, "high", 0, "High end of the valuation range")
	offersCmd.Flags().StringVar(&offersCompany, "company", "", "Company ID when no valuation is given")
	offersCmd.Flags().StringSliceVar(&offersTemplates, "template", nil, "Templates to use (repeatable)")
	offersCmd.Flags().BoolVar(&offersAllTemplate, "all", false, "Include optional templates")
	offersCmd.Flags().BoolVar(&offersJSON, "json", false, "Print the stack as JSON")
}

func runOffers(cmd *cobra.Command, args []string) error {
	req := offer.Request{
		CompanyID:       offersCompany,
		IncludeOptional: offersAllTemplate || services.Config.Offers.IncludeOptional,
	}
	for _, t := range offersTemplates {
		req.Templates = append(req.Templates, offer.TemplateName(t))
	}

	bundle := report.Bundle{}
	switch {
	case len(args) == 1:
		cv, err := services.Valuations.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		req.CompanyID, req.CompanyName, req.ValuationID = cv.CompanyID, cv.CompanyName, cv.ID
		req.Range = offer.NewRange(cv.Low, cv.High)
		bundle.Valuation = cv
	case offersCompany != "" && offersHigh > 0:
		req.Range = offer.NewRange(offersLow, offersHigh)
	default:
		return fmt.Errorf("give a valuation id, or --company with --low and --high")
	}

	stack, err := services.Generator.Generate(cmd.Context(), req)
	if err != nil {
		return err
	}
	if err := services.Offers.Save(cmd.Context(), stack); err != nil {
		return fmt.Errorf("save offer stack: %w", err)
	}

	if offersJSON || bundle.Valuation == nil {
		return printJSON(cmd.OutOrStdout(), stack)
	}
	bundle.Offers = stack
	md, err := report.Markdown(bundle)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), md)
	fmt.Fprintf(cmd.OutOrStdout(), "Offer stack ID: %s\n", stack.ID)
	return nil
}
