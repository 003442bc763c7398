package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cuadrada/cuadrada/internal/extract"
	"github.com/cuadrada/cuadrada/internal/models"
	"github.com/cuadrada/cuadrada/internal/output"
)

var reviewTitle string

var reviewCmd = &cobra.Command{
	Use:   "review <paper.pdf>",
	Short: "Run the peer-review batch against a paper",
	Long: `Extract the text of a PDF paper and submit it to the configured
number of independent AI reviewers. Each reviewer produces a decision
(ACCEPTED, REVISION, REJECTED) with per-criterion scores; the batch
verdict requires every reviewer to accept.

Results are persisted so they can be inspected later with
'cuadrada submissions show' or retried with 'cuadrada review retry'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewRun(cmd.Context(), args[0])
	},
}

var reviewRetryCmd = &cobra.Command{
	Use:   "retry <submission-id> <reviewer-name>",
	Short: "Re-run a single reviewer for an existing submission",
	Long: `Run a fresh, independent reviewer-run for one reviewer slot of an
existing submission, replacing that reviewer's stored outcome. The
batch verdict is recomputed over the updated set.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewRetryRun(cmd.Context(), args[0], args[1])
	},
}

func init() {
	reviewCmd.Flags().StringVar(&reviewTitle, "title", "", "Paper title (default: the filename)")
	reviewCmd.AddCommand(reviewRetryCmd)
	rootCmd.AddCommand(reviewCmd)
}

func reviewRun(ctx context.Context, path string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	ui.Info("Extracting text from %s", path)
	text, err := extract.Text(path)
	if err != nil {
		return err
	}
	ui.VerboseLog("Extracted %d characters", len(text))

	filename := filepath.Base(path)
	title := reviewTitle
	if title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	sub := &models.Submission{
		PaperTitle: title,
		Filename:   filename,
		FilePath:   path,
	}
	if err := s.CreateSubmission(ctx, sub); err != nil {
		return err
	}

	runner := newReviewRunner()
	ui.Info("Running review batch (submission %s)", sub.ID)
	outcomes, verdict := runner.Run(ctx, text)

	for _, o := range outcomes {
		o.SubmissionID = sub.ID
		if err := s.SaveReviewOutcome(ctx, o); err != nil {
			return fmt.Errorf("save outcome for %s: %w", o.ReviewerName, err)
		}
	}
	if err := s.CompleteSubmission(ctx, sub.ID, verdict.AllAccepted, ""); err != nil {
		return err
	}

	printOutcomes(outcomes)
	printVerdict(verdict)
	ui.Info("Submission ID: %s", output.Cyan(sub.ID))
	return nil
}

func reviewRetryRun(ctx context.Context, submissionID, reviewerName string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	sub, err := s.GetSubmission(ctx, submissionID)
	if err != nil {
		return err
	}

	text, err := extract.Text(sub.FilePath)
	if err != nil {
		return fmt.Errorf("re-extract original document: %w", err)
	}

	runner := newReviewRunner()
	ui.Info("Re-running %s for submission %s", reviewerName, sub.ID)
	outcome := runner.RetryOne(ctx, text, reviewerName)
	outcome.SubmissionID = sub.ID
	if err := s.SaveReviewOutcome(ctx, outcome); err != nil {
		return err
	}

	outcomes, err := s.ListReviewOutcomes(ctx, sub.ID)
	if err != nil {
		return err
	}
	verdict := models.ComputeVerdict(outcomes)
	if err := s.CompleteSubmission(ctx, sub.ID, verdict.AllAccepted, ""); err != nil {
		return err
	}

	printOutcomes(outcomes)
	printVerdict(verdict)
	return nil
}

func printOutcomes(outcomes []*models.ReviewOutcome) {
	table := ui.Table([]string{"Reviewer", "Decision", "Score", "Model", "Downgraded"})
	for _, o := range outcomes {
		score := "-"
		if o.CompositeScore != nil {
			score = output.ScoreColor(*o.CompositeScore)
		}
		downgraded := ""
		if o.ModelDowngraded {
			downgraded = output.Yellow("yes")
		}
		table.Append([]string{
			o.ReviewerName,
			output.DecisionColor(string(o.Decision)),
			score,
			o.ModelUsed,
			downgraded,
		})
	}
	table.Render()
	fmt.Fprintln(ui.Out)

	for _, o := range outcomes {
		ui.VerboseLog("%s: %s", o.ReviewerName, o.Summary)
	}
}

func printVerdict(v models.BatchVerdict) {
	if v.AllAccepted {
		ui.Success("All reviewers accepted the paper")
		return
	}
	ui.Warning("Verdict: %d accepted, %d revision, %d rejected, %d errors",
		v.Accepted, v.Revision, v.Rejected, v.Errors)
}
