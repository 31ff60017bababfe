package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-tailor/internal/logger"
	"github.com/jonathan/resume-tailor/internal/relevance"
	"github.com/jonathan/resume-tailor/internal/types"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Score resume statements against job requirements",
	Long:  "Reconcile a RequirementSet and a StatementSet into a RelevanceSet: scored links for every requirement/statement pair above the floor, plus coverage gaps for requirements nothing addresses.",
	RunE:  runReconcile,
}

var (
	reconcileRequirements string
	reconcileStatements   string
	reconcileOut          string
	reconcileAPIKey       string
	reconcileThreshold    float64
)

func init() {
	reconcileCmd.Flags().StringVar(&reconcileRequirements, "requirements", "", "Path to input RequirementSet JSON file (required)")
	reconcileCmd.Flags().StringVar(&reconcileStatements, "statements", "", "Path to input StatementSet JSON file (required)")
	reconcileCmd.Flags().StringVarP(&reconcileOut, "out", "o", "", "Path to output RelevanceSet JSON file (required)")
	reconcileCmd.Flags().StringVar(&reconcileAPIKey, "api-key", "", "Gemini API key (optional, defaults to GEMINI_API_KEY env var)")
	reconcileCmd.Flags().Float64Var(&reconcileThreshold, "threshold", 0, "Coverage gap cutoff in [0,1] (defaults to the built-in threshold)")

	_ = reconcileCmd.MarkFlagRequired("requirements")
	_ = reconcileCmd.MarkFlagRequired("statements")
	_ = reconcileCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	var reqs types.RequirementSet
	if err := loadJSONFile(reconcileRequirements, &reqs); err != nil {
		return err
	}
	var stmts types.StatementSet
	if err := loadJSONFile(reconcileStatements, &stmts); err != nil {
		return err
	}

	ctx := context.Background()

	log, err := logger.New(false, false)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	client, err := newModelClient(ctx, reconcileAPIKey, log)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	cfg := relevance.DefaultConfig()
	if cmd.Flags().Changed("threshold") {
		cfg.Threshold = reconcileThreshold
	}

	rel, err := relevance.New(client, log, cfg).Reconcile(ctx, reqs.Requirements, stmts.Statements)
	if err != nil {
		return fmt.Errorf("failed to reconcile relevance: %w", err)
	}

	if err := writeJSONArtifact(reconcileOut, rel); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(os.Stdout, "Successfully reconciled: %d links, %d coverage gaps\n", len(rel.Links), len(rel.CoverageGaps))
	_, _ = fmt.Fprintf(os.Stdout, "Output: %s\n", reconcileOut)

	return nil
}
