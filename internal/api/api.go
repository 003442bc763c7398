// Package api exposes the review pipeline over a small JSON HTTP surface:
// create a submission, poll its status, read its results, and retry a single
// reviewer. Review processing runs in the background through a task runner
// so the create call returns immediately.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/cuadrada/cuadrada/internal/batch"
	"github.com/cuadrada/cuadrada/internal/extract"
	"github.com/cuadrada/cuadrada/internal/models"
	"github.com/cuadrada/cuadrada/internal/store"
	"github.com/cuadrada/cuadrada/internal/tasks"
)

// ExtractFunc resolves a document path to its plain text.
type ExtractFunc func(path string) (string, error)

// Server provides the REST API handlers.
type Server struct {
	store   store.Store
	reviews *batch.Runner
	runner  tasks.Runner
	extract ExtractFunc
	logger  *slog.Logger
}

// NewServer creates an API server. The extract function defaults to PDF
// extraction when nil.
func NewServer(s store.Store, reviews *batch.Runner, runner tasks.Runner, extractFn ExtractFunc) *Server {
	if extractFn == nil {
		extractFn = extract.Text
	}
	return &Server{
		store:   s,
		reviews: reviews,
		runner:  runner,
		extract: extractFn,
		logger:  slog.Default(),
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/submissions", s.createSubmission)
	mux.HandleFunc("GET /api/v1/submissions", s.listSubmissions)
	mux.HandleFunc("GET /api/v1/submissions/{id}", s.getSubmission)
	mux.HandleFunc("GET /api/v1/submissions/{id}/status", s.submissionStatus)
	mux.HandleFunc("POST /api/v1/submissions/{id}/reviews/{reviewer}/retry", s.retryReview)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// outcomeView is the JSON projection of a review outcome.
type outcomeView struct {
	Decision        string         `json:"decision"`
	Summary         string         `json:"summary"`
	FullReview      string         `json:"full_review"`
	CompositeScore  *float64       `json:"composite_score"`
	CriterionScores map[string]int `json:"criterion_scores,omitempty"`
	ModelUsed       string         `json:"model_used"`
	ModelDowngraded bool           `json:"model_downgraded"`
}

func viewOutcome(o *models.ReviewOutcome) outcomeView {
	return outcomeView{
		Decision:        string(o.Decision),
		Summary:         o.Summary,
		FullReview:      o.FullReview,
		CompositeScore:  o.CompositeScore,
		CriterionScores: o.CriterionScores,
		ModelUsed:       o.ModelUsed,
		ModelDowngraded: o.ModelDowngraded,
	}
}

func viewOutcomes(outcomes []*models.ReviewOutcome) map[string]outcomeView {
	m := make(map[string]outcomeView, len(outcomes))
	for _, o := range outcomes {
		m[o.ReviewerName] = viewOutcome(o)
	}
	return m
}

// --- Submissions ---

type createSubmissionRequest struct {
	FilePath   string `json:"file_path"`
	PaperTitle string `json:"paper_title"`
}

func (s *Server) createSubmission(w http.ResponseWriter, r *http.Request) {
	var req createSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.FilePath == "" {
		writeError(w, http.StatusBadRequest, "file_path is required")
		return
	}

	filename := filepath.Base(req.FilePath)
	title := req.PaperTitle
	if title == "" {
		title = filename
	}

	sub := &models.Submission{
		PaperTitle: title,
		Filename:   filename,
		FilePath:   req.FilePath,
	}
	if err := s.store.CreateSubmission(r.Context(), sub); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.runner.Submit(func(ctx context.Context) error {
		return s.processSubmission(ctx, sub)
	})

	writeJSON(w, http.StatusAccepted, map[string]string{"submission_id": sub.ID})
}

// processSubmission is the background job: extract, review, persist.
func (s *Server) processSubmission(ctx context.Context, sub *models.Submission) error {
	text, err := s.extract(sub.FilePath)
	if err != nil {
		s.logger.Error("extraction failed", "submission", sub.ID, "error", err)
		if cerr := s.store.CompleteSubmission(ctx, sub.ID, false, err.Error()); cerr != nil {
			return cerr
		}
		return err
	}

	outcomes, verdict := s.reviews.Run(ctx, text)
	for _, o := range outcomes {
		o.SubmissionID = sub.ID
		if err := s.store.SaveReviewOutcome(ctx, o); err != nil {
			s.logger.Error("save outcome failed", "submission", sub.ID,
				"reviewer", o.ReviewerName, "error", err)
		}
	}

	return s.store.CompleteSubmission(ctx, sub.ID, verdict.AllAccepted, "")
}

func (s *Server) listSubmissions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	subs, err := s.store.ListSubmissions(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) getSubmission(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sub, err := s.store.GetSubmission(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("submission not found: %s", id))
		return
	}

	outcomes, err := s.store.ListReviewOutcomes(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"submission":   sub,
		"results":      viewOutcomes(outcomes),
		"all_accepted": sub.AllAccepted,
	})
}

func (s *Server) submissionStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sub, err := s.store.GetSubmission(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "not_found",
			"message": "Review not found.",
		})
		return
	}

	if !sub.ProcessingComplete {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "processing",
			"message": "Review is still being processed.",
		})
		return
	}

	outcomes, err := s.store.ListReviewOutcomes(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "complete",
		"results":      viewOutcomes(outcomes),
		"all_accepted": sub.AllAccepted,
		"error":        sub.Error,
	})
}

// retryReview re-runs a single reviewer slot against the original document
// and replaces that reviewer's outcome, then recomputes the batch verdict
// over the full updated set.
func (s *Server) retryReview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	reviewer := r.PathValue("reviewer")

	sub, err := s.store.GetSubmission(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("submission not found: %s", id))
		return
	}

	text, err := s.extract(sub.FilePath)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	outcome := s.reviews.RetryOne(r.Context(), text, reviewer)
	outcome.SubmissionID = sub.ID
	if err := s.store.SaveReviewOutcome(r.Context(), outcome); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	outcomes, err := s.store.ListReviewOutcomes(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	verdict := models.ComputeVerdict(outcomes)
	if err := s.store.CompleteSubmission(r.Context(), id, verdict.AllAccepted, ""); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"result":       viewOutcome(outcome),
		"all_accepted": verdict.AllAccepted,
	})
}
