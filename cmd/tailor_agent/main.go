// Package main provides the tailor_agent CLI for the resume tailoring pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tailor_agent",
	Short: "Resume tailoring pipeline",
	Long:  "tailor_agent tailors a resume to a job posting: it extracts structured requirements from the posting, breaks the resume into statements, reconciles the two into a relevance mapping, and synthesizes a reweighted resume with full provenance.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
