package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuadrada/cuadrada/internal/batch"
	"github.com/cuadrada/cuadrada/internal/llm"
	"github.com/cuadrada/cuadrada/internal/models"
	"github.com/cuadrada/cuadrada/internal/store"
)

type fakeCompleter struct{}

func (fakeCompleter) Complete(ctx context.Context, systemPrompt, userText string) (*llm.Result, error) {
	return &llm.Result{
		Text:  "Methodology: 85%\nNovelty: 90%\n\nFINAL DECISION: **ACCEPTED**",
		Model: "model-a",
	}, nil
}

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	srv := NewServer(s, batch.NewRunner(fakeCompleter{}))
	srv.extract = func(path string) (string, error) {
		return "extracted paper text with plenty of content to review", nil
	}
	return srv, s
}

func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(mcpgo.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	require.NoError(t, json.Unmarshal([]byte(text), target), "failed to parse result JSON: %s", text)
}

func TestMCPServerRegistersTools(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.NotNil(t, srv.MCPServer())
}

func TestHandleReviewPaper(t *testing.T) {
	srv, s := newTestServer(t)

	result, err := srv.handleReviewPaper(context.Background(), callToolReq("cuadrada_review_paper", map[string]any{
		"file_path":   "/tmp/paper.pdf",
		"paper_title": "My Paper",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var resp struct {
		SubmissionID string                    `json:"submission_id"`
		AllAccepted  bool                      `json:"all_accepted"`
		Results      map[string]map[string]any `json:"results"`
	}
	resultJSON(t, result, &resp)

	assert.NotEmpty(t, resp.SubmissionID)
	assert.True(t, resp.AllAccepted)
	assert.Len(t, resp.Results, batch.DefaultReviewers)
	assert.Equal(t, "ACCEPTED", resp.Results["Reviewer 1"]["decision"])

	// Outcomes are persisted, not just returned.
	outcomes, err := s.ListReviewOutcomes(context.Background(), resp.SubmissionID)
	require.NoError(t, err)
	assert.Len(t, outcomes, batch.DefaultReviewers)

	sub, err := s.GetSubmission(context.Background(), resp.SubmissionID)
	require.NoError(t, err)
	assert.True(t, sub.ProcessingComplete)
	assert.True(t, sub.AllAccepted)
}

func TestHandleReviewPaperMissingPath(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleReviewPaper(context.Background(), callToolReq("cuadrada_review_paper", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "file_path")
}

func TestHandleReviewPaperExtractionFailure(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.extract = func(path string) (string, error) {
		return "", errors.New("document not found")
	}

	result, err := srv.handleReviewPaper(context.Background(), callToolReq("cuadrada_review_paper", map[string]any{
		"file_path": "/tmp/missing.pdf",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "extraction failed")
}

func TestHandleGetSubmission(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()

	sub := &models.Submission{PaperTitle: "p", FilePath: "/tmp/p.pdf"}
	require.NoError(t, s.CreateSubmission(ctx, sub))
	require.NoError(t, s.SaveReviewOutcome(ctx, &models.ReviewOutcome{
		SubmissionID: sub.ID,
		ReviewerName: "Reviewer 1",
		Decision:     models.DecisionAccepted,
	}))

	result, err := srv.handleGetSubmission(ctx, callToolReq("cuadrada_get_submission", map[string]any{
		"submission_id": sub.ID,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var resp struct {
		Results map[string]map[string]any `json:"results"`
	}
	resultJSON(t, result, &resp)
	assert.Contains(t, resp.Results, "Reviewer 1")
}

func TestHandleGetSubmissionNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleGetSubmission(context.Background(), callToolReq("cuadrada_get_submission", map[string]any{
		"submission_id": "20260101_missing1",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleListSubmissions(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateSubmission(ctx, &models.Submission{
			PaperTitle: "p",
			FilePath:   "/tmp/p.pdf",
		}))
	}

	result, err := srv.handleListSubmissions(ctx, callToolReq("cuadrada_list_submissions", map[string]any{
		"limit": 2,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var resp []map[string]any
	resultJSON(t, result, &resp)
	assert.Len(t, resp, 2)
}
