package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuadrada/cuadrada/internal/models"
	"github.com/cuadrada/cuadrada/internal/output"
)

var submissionsLimit int

var submissionsCmd = &cobra.Command{
	Use:   "submissions",
	Short: "List and inspect past submissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return submissionsListRun(cmd.Context())
	},
}

var submissionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List submissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return submissionsListRun(cmd.Context())
	},
}

var submissionsShowCmd = &cobra.Command{
	Use:   "show <submission-id>",
	Short: "Show one submission with full reviewer outcomes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submissionsShowRun(cmd.Context(), args[0])
	},
}

func init() {
	submissionsListCmd.Flags().IntVar(&submissionsLimit, "limit", 20, "Maximum submissions to list")
	submissionsCmd.AddCommand(submissionsListCmd)
	submissionsCmd.AddCommand(submissionsShowCmd)
	rootCmd.AddCommand(submissionsCmd)
}

func submissionsListRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	subs, err := s.ListSubmissions(ctx, submissionsLimit)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		ui.Info("No submissions yet. Run 'cuadrada review <paper.pdf>' to get started.")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Status", "All Accepted", "Created"})
	for _, sub := range subs {
		status := output.Yellow("processing")
		if sub.ProcessingComplete {
			status = output.Green("complete")
		}
		if sub.Error != "" {
			status = output.Red("error")
		}
		accepted := ""
		if sub.ProcessingComplete && sub.Error == "" {
			accepted = "no"
			if sub.AllAccepted {
				accepted = output.Green("yes")
			}
		}
		table.Append([]string{
			sub.ID,
			sub.PaperTitle,
			status,
			accepted,
			sub.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	table.Render()
	return nil
}

func submissionsShowRun(ctx context.Context, id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	sub, err := s.GetSubmission(ctx, id)
	if err != nil {
		return err
	}

	ui.Info("Submission %s: %s", output.Cyan(sub.ID), sub.PaperTitle)
	if sub.Error != "" {
		ui.Error("Processing error: %s", sub.Error)
	}

	outcomes, err := s.ListReviewOutcomes(ctx, id)
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		ui.Info("No reviewer outcomes recorded yet.")
		return nil
	}

	printOutcomes(outcomes)

	for _, o := range outcomes {
		fmt.Fprintf(ui.Out, "%s %s\n", output.Cyan(o.ReviewerName+":"),
			output.DecisionColor(string(o.Decision)))
		fmt.Fprintln(ui.Out, o.FullReview)
		fmt.Fprintln(ui.Out)
	}

	if sub.ProcessingComplete {
		printVerdict(models.ComputeVerdict(outcomes))
	}
	return nil
}
