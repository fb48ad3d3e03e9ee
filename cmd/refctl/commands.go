package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "refctl",
		Short:        "Operate the volleyball rule index",
		SilenceUsage: true,
	}
	cmd.AddCommand(
		buildIngestCmd(),
		buildSearchCmd(),
		buildEvaluateCmd(),
	)
	return cmd
}

func buildIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [file]",
		Short: "Chunk, embed and store a local rulebook (PDF, TXT or MD)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return runIngest(cmd.Context(), cmd.OutOrStdout(), a.Rules, args[0])
		},
	}
}

func buildSearchCmd() *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Print the rule snippets closest to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if k <= 0 {
				return fmt.Errorf("-k must be positive, got %d", k)
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return runSearch(cmd.Context(), cmd.OutOrStdout(), a.Rules, args[0], k)
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 4, "Number of snippets to return")
	return cmd
}

func buildEvaluateCmd() *cobra.Command {
	var (
		answer     string
		correct    string
		difficulty string
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Grade a referee call and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return runEvaluate(cmd.Context(), cmd.OutOrStdout(), a.Evaluations, answer, correct, difficulty)
		},
	}
	cmd.Flags().StringVar(&answer, "answer", "", "The trainee's call")
	cmd.Flags().StringVar(&correct, "correct", "", "The known-correct call")
	cmd.Flags().StringVar(&difficulty, "difficulty", "medium", "Difficulty (easy, medium, hard, extreme)")
	_ = cmd.MarkFlagRequired("answer")
	_ = cmd.MarkFlagRequired("correct")
	return cmd
}
