package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-tailor/internal/ingestion"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a resume document into normalized text with section hints",
	Long:  "Parse a resume document (pdf, txt, or md), normalize its text, detect section boundaries, and write the Document JSON used by the analyze command.",
	RunE:  runIngest,
}

var (
	ingestResume string
	ingestFormat string
	ingestOut    string
)

func init() {
	ingestCmd.Flags().StringVarP(&ingestResume, "resume", "r", "", "Path to resume document (required)")
	ingestCmd.Flags().StringVar(&ingestFormat, "format", "", "Document format override (defaults to the file extension)")
	ingestCmd.Flags().StringVarP(&ingestOut, "out", "o", "", "Path to output Document JSON file (required)")

	_ = ingestCmd.MarkFlagRequired("resume")
	_ = ingestCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(_ *cobra.Command, _ []string) error {
	var doc *ingestion.Document
	var err error

	if ingestFormat != "" {
		data, readErr := os.ReadFile(ingestResume)
		if readErr != nil {
			return fmt.Errorf("failed to read resume file %s: %w", ingestResume, readErr)
		}
		doc, err = ingestion.Ingest(data, ingestFormat)
	} else {
		doc, err = ingestion.IngestFile(ingestResume)
	}
	if err != nil {
		return fmt.Errorf("failed to ingest resume: %w", err)
	}

	if err := writeJSONArtifact(ingestOut, doc); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(os.Stdout, "Successfully ingested resume (%d chars, %d section hints)\n", doc.CharCount, len(doc.SectionHints))
	_, _ = fmt.Fprintf(os.Stdout, "Output: %s\n", ingestOut)

	return nil
}
