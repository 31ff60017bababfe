package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-tailor/internal/logger"
	"github.com/jonathan/resume-tailor/internal/synthesis"
	"github.com/jonathan/resume-tailor/internal/types"
)

var synthCmd = &cobra.Command{
	Use:   "synthesize",
	Short: "Synthesize the tailored resume",
	Long:  "Synthesize a tailored resume from a RequirementSet, a StatementSet, and the RelevanceSet linking them: statements are reordered and reworded toward the requirements, every output line keeps provenance to its source statement, and nothing is fabricated.",
	RunE:  runSynthesize,
}

var (
	synthRequirements string
	synthStatements   string
	synthRelevance    string
	synthOut          string
	synthAPIKey       string
)

func init() {
	synthCmd.Flags().StringVar(&synthRequirements, "requirements", "", "Path to input RequirementSet JSON file (required)")
	synthCmd.Flags().StringVar(&synthStatements, "statements", "", "Path to input StatementSet JSON file (required)")
	synthCmd.Flags().StringVar(&synthRelevance, "relevance", "", "Path to input RelevanceSet JSON file (required)")
	synthCmd.Flags().StringVarP(&synthOut, "out", "o", "", "Path to output TailoredResume JSON file (required)")
	synthCmd.Flags().StringVar(&synthAPIKey, "api-key", "", "Gemini API key (optional, defaults to GEMINI_API_KEY env var)")

	_ = synthCmd.MarkFlagRequired("requirements")
	_ = synthCmd.MarkFlagRequired("statements")
	_ = synthCmd.MarkFlagRequired("relevance")
	_ = synthCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(synthCmd)
}

func runSynthesize(_ *cobra.Command, _ []string) error {
	var reqs types.RequirementSet
	if err := loadJSONFile(synthRequirements, &reqs); err != nil {
		return err
	}
	var stmts types.StatementSet
	if err := loadJSONFile(synthStatements, &stmts); err != nil {
		return err
	}
	var rel types.RelevanceSet
	if err := loadJSONFile(synthRelevance, &rel); err != nil {
		return err
	}

	ctx := context.Background()

	log, err := logger.New(false, false)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	client, err := newModelClient(ctx, synthAPIKey, log)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	resume, err := synthesis.New(client, log, synthesis.DefaultConfig()).Synthesize(ctx, reqs.Requirements, stmts.Statements, &rel)
	if err != nil {
		return fmt.Errorf("failed to synthesize resume: %w", err)
	}

	if err := writeJSONArtifact(synthOut, resume); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(os.Stdout, "Successfully synthesized resume: %d sections, %d statements\n", len(resume.Sections), resume.StatementCount())
	if len(resume.Degradations) > 0 {
		_, _ = fmt.Fprintf(os.Stdout, "Degradations: %d\n", len(resume.Degradations))
	}
	_, _ = fmt.Fprintf(os.Stdout, "Output: %s\n", synthOut)

	return nil
}
