// Package mcp exposes the review pipeline as MCP tools so agent frontends
// can submit papers and read verdicts without going through the HTTP API.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cuadrada/cuadrada/internal/batch"
	"github.com/cuadrada/cuadrada/internal/extract"
	"github.com/cuadrada/cuadrada/internal/models"
	"github.com/cuadrada/cuadrada/internal/store"
)

// Server wraps the review pipeline and exposes it as MCP tools.
type Server struct {
	store   store.Store
	reviews *batch.Runner
	extract func(path string) (string, error)
}

// NewServer creates the MCP server wrapper.
func NewServer(s store.Store, reviews *batch.Runner) *Server {
	return &Server{
		store:   s,
		reviews: reviews,
		extract: extract.Text,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("cuadrada", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.reviewPaperTool())
	srv.AddTool(s.getSubmissionTool())
	srv.AddTool(s.listSubmissionsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// cuadrada_review_paper
func (s *Server) reviewPaperTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("cuadrada_review_paper",
		mcp.WithDescription("Run the full peer-review batch against a PDF at the given path. Blocks until all reviewers finish and returns per-reviewer decisions plus the aggregate verdict."),
		mcp.WithString("file_path", mcp.Required(), mcp.Description("Filesystem path to the paper PDF")),
		mcp.WithString("paper_title", mcp.Description("Paper title used in stored records")),
	)
	return tool, s.handleReviewPaper
}

func (s *Server) handleReviewPaper(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filePath, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: file_path"), nil
	}
	title := request.GetString("paper_title", "")

	text, err := s.extract(filePath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("document extraction failed: %v", err)), nil
	}

	sub := &models.Submission{PaperTitle: title, FilePath: filePath}
	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create submission: %v", err)), nil
	}

	outcomes, verdict := s.reviews.Run(ctx, text)
	for _, o := range outcomes {
		o.SubmissionID = sub.ID
		if err := s.store.SaveReviewOutcome(ctx, o); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to save outcome: %v", err)), nil
		}
	}
	if err := s.store.CompleteSubmission(ctx, sub.ID, verdict.AllAccepted, ""); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to complete submission: %v", err)), nil
	}

	data, err := json.Marshal(map[string]any{
		"submission_id": sub.ID,
		"all_accepted":  verdict.AllAccepted,
		"verdict":       verdict,
		"results":       outcomesOut(outcomes),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// cuadrada_get_submission
func (s *Server) getSubmissionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("cuadrada_get_submission",
		mcp.WithDescription("Get a submission and its per-reviewer outcomes by submission id."),
		mcp.WithString("submission_id", mcp.Required(), mcp.Description("Submission id")),
	)
	return tool, s.handleGetSubmission
}

func (s *Server) handleGetSubmission(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("submission_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: submission_id"), nil
	}

	sub, err := s.store.GetSubmission(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("submission not found: %s", id)), nil
	}
	outcomes, err := s.store.ListReviewOutcomes(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list outcomes: %v", err)), nil
	}

	data, err := json.Marshal(map[string]any{
		"submission": sub,
		"results":    outcomesOut(outcomes),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal submission: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// cuadrada_list_submissions
func (s *Server) listSubmissionsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("cuadrada_list_submissions",
		mcp.WithDescription("List recent submissions with their processing state and aggregate verdict."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of submissions to return (default 20)")),
	)
	return tool, s.handleListSubmissions
}

func (s *Server) handleListSubmissions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 20)

	subs, err := s.store.ListSubmissions(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list submissions: %v", err)), nil
	}

	type submissionOut struct {
		ID          string `json:"submission_id"`
		PaperTitle  string `json:"paper_title"`
		Complete    bool   `json:"processing_complete"`
		AllAccepted bool   `json:"all_accepted"`
		Error       string `json:"error,omitempty"`
	}
	out := make([]submissionOut, len(subs))
	for i, sub := range subs {
		out[i] = submissionOut{
			ID:          sub.ID,
			PaperTitle:  sub.PaperTitle,
			Complete:    sub.ProcessingComplete,
			AllAccepted: sub.AllAccepted,
			Error:       sub.Error,
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal submissions: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// outcomesOut projects outcomes to a reviewer-keyed map for tool results.
func outcomesOut(outcomes []*models.ReviewOutcome) map[string]any {
	m := make(map[string]any, len(outcomes))
	for _, o := range outcomes {
		m[o.ReviewerName] = map[string]any{
			"decision":         string(o.Decision),
			"summary":          o.Summary,
			"composite_score":  o.CompositeScore,
			"criterion_scores": o.CriterionScores,
			"model_used":       o.ModelUsed,
			"model_downgraded": o.ModelDowngraded,
		}
	}
	return m
}
