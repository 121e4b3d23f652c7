package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"deal_valuation/pkg/core/report"
)

var (
	exportOut     string
	exportStackID string
)

var exportCmd = &cobra.Command{
	Use:   "export [valuation_id]",
	Short: "Write a stored valuation as .xlsx, .pdf, .html or .md",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file; the extension picks the format")
	exportCmd.Flags().StringVar(&exportStackID, "offers", "", "Offer stack ID to include")
	_ = exportCmd.MarkFlagRequired("out")
}

func runExport(cmd *cobra.Command, args []string) error {
	cv, err := services.Valuations.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	b := report.Bundle{Valuation: cv}
	if exportStackID != "" {
		if b.Offers, err = services.Offers.Get(cmd.Context(), exportStackID); err != nil {
			return err
		}
	}

	f, err := os.Create(exportOut)
	if err != nil {
		return err
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(exportOut)); ext {
	case ".xlsx":
		err = report.WriteWorkbook(f, b)
	case ".pdf":
		err = report.WritePDF(f, b)
	case ".html":
		var out []byte
		if out, err = report.RenderHTML(b); err == nil {
			_, err = f.Write(out)
		}
	case ".md":
		var md string
		if md, err = report.Markdown(b); err == nil {
			_, err = f.WriteString(md)
		}
	default:
		err = fmt.Errorf("unsupported export format %q", ext)
	}
	if err != nil {
		return err
	}
	logger.Info().Str("file", exportOut).Msg("report written")
	return f.Close()
}
