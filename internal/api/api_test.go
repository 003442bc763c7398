package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuadrada/cuadrada/internal/batch"
	"github.com/cuadrada/cuadrada/internal/llm"
	"github.com/cuadrada/cuadrada/internal/models"
	"github.com/cuadrada/cuadrada/internal/store"
	"github.com/cuadrada/cuadrada/internal/tasks"
)

// inlineRunner executes submitted jobs synchronously so tests observe
// completed processing as soon as the create call returns.
type inlineRunner struct{}

type inlineHandle struct{ err error }

func (h inlineHandle) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (h inlineHandle) Err() error { return h.err }

func (inlineRunner) Submit(job tasks.Job) tasks.Handle {
	return inlineHandle{err: job(context.Background())}
}
func (inlineRunner) Close() {}

type fakeCompleter struct {
	text string
	err  error
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userText string) (*llm.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Result{Text: f.text, Model: "model-a"}, nil
}

func setupTestServer(t *testing.T, fc *fakeCompleter, extractFn ExtractFunc) (*Server, store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	reviews := batch.NewRunner(fc)
	srv := NewServer(s, reviews, inlineRunner{}, extractFn)
	return srv, s
}

func goodExtract(path string) (string, error) {
	return "ABSTRACT Introduction Methodology Results et al. (2024) long extracted paper text", nil
}

const acceptedReview = "Methodology: 85%\nNovelty: 90%\n\nFINAL DECISION: **ACCEPTED**"

func createSubmission(t *testing.T, router http.Handler, body string) string {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/submissions", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["submission_id"])
	return resp["submission_id"]
}

func TestCreateSubmission(t *testing.T) {
	srv, s := setupTestServer(t, &fakeCompleter{text: acceptedReview}, goodExtract)
	router := srv.Router()

	id := createSubmission(t, router, `{"file_path":"/tmp/paper.pdf","paper_title":"My Paper"}`)

	// The inline runner has already processed the batch.
	sub, err := s.GetSubmission(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, sub.ProcessingComplete)
	assert.True(t, sub.AllAccepted)
	assert.Equal(t, "My Paper", sub.PaperTitle)

	outcomes, err := s.ListReviewOutcomes(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, outcomes, batch.DefaultReviewers)
}

func TestCreateSubmissionDefaultsTitleToFilename(t *testing.T) {
	srv, s := setupTestServer(t, &fakeCompleter{text: acceptedReview}, goodExtract)
	id := createSubmission(t, srv.Router(), `{"file_path":"/papers/consensus.pdf"}`)

	sub, err := s.GetSubmission(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "consensus.pdf", sub.PaperTitle)
	assert.Equal(t, "consensus.pdf", sub.Filename)
}

func TestCreateSubmissionValidation(t *testing.T) {
	srv, _ := setupTestServer(t, &fakeCompleter{text: acceptedReview}, goodExtract)
	router := srv.Router()

	t.Run("invalid JSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/submissions", bytes.NewBufferString("{"))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing file_path", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/submissions", bytes.NewBufferString(`{"paper_title":"x"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCreateSubmissionExtractionFailure(t *testing.T) {
	failExtract := func(path string) (string, error) {
		return "", errors.New("document has no usable text content")
	}
	srv, s := setupTestServer(t, &fakeCompleter{text: acceptedReview}, failExtract)

	id := createSubmission(t, srv.Router(), `{"file_path":"/tmp/empty.pdf"}`)

	sub, err := s.GetSubmission(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, sub.ProcessingComplete)
	assert.False(t, sub.AllAccepted)
	assert.Contains(t, sub.Error, "no usable text")

	outcomes, err := s.ListReviewOutcomes(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestGetSubmission(t *testing.T) {
	srv, _ := setupTestServer(t, &fakeCompleter{text: acceptedReview}, goodExtract)
	router := srv.Router()

	id := createSubmission(t, router, `{"file_path":"/tmp/paper.pdf"}`)

	req := httptest.NewRequest("GET", "/api/v1/submissions/"+id, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Results     map[string]outcomeView `json:"results"`
		AllAccepted bool                   `json:"all_accepted"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.AllAccepted)
	require.Len(t, resp.Results, batch.DefaultReviewers)

	r1, ok := resp.Results["Reviewer 1"]
	require.True(t, ok)
	assert.Equal(t, "ACCEPTED", r1.Decision)
	assert.Equal(t, "model-a", r1.ModelUsed)
	require.NotNil(t, r1.CompositeScore)
}

func TestGetSubmissionNotFound(t *testing.T) {
	srv, _ := setupTestServer(t, &fakeCompleter{text: acceptedReview}, goodExtract)

	req := httptest.NewRequest("GET", "/api/v1/submissions/20260101_missing1", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListSubmissionsAPI(t *testing.T) {
	srv, _ := setupTestServer(t, &fakeCompleter{text: acceptedReview}, goodExtract)
	router := srv.Router()

	createSubmission(t, router, `{"file_path":"/tmp/a.pdf"}`)
	createSubmission(t, router, `{"file_path":"/tmp/b.pdf"}`)

	req := httptest.NewRequest("GET", "/api/v1/submissions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var subs []json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &subs))
	assert.Len(t, subs, 2)

	t.Run("limit", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/submissions?limit=1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &subs))
		assert.Len(t, subs, 1)
	})

	t.Run("invalid limit", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/submissions?limit=bogus", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSubmissionStatus(t *testing.T) {
	srv, s := setupTestServer(t, &fakeCompleter{text: acceptedReview}, goodExtract)
	router := srv.Router()

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/submissions/20260101_missing1/status", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "not_found", resp["status"])
	})

	id := createSubmission(t, router, `{"file_path":"/tmp/paper.pdf"}`)

	t.Run("complete", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/submissions/"+id+"/status", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Status      string                 `json:"status"`
			Results     map[string]outcomeView `json:"results"`
			AllAccepted bool                   `json:"all_accepted"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "complete", resp.Status)
		assert.True(t, resp.AllAccepted)
		assert.Len(t, resp.Results, batch.DefaultReviewers)
	})

	t.Run("processing", func(t *testing.T) {
		// A submission created directly in the store has no completed batch
		// yet, which is exactly what an in-flight one looks like.
		pending := &models.Submission{PaperTitle: "pending", FilePath: "/tmp/pending.pdf"}
		require.NoError(t, s.CreateSubmission(context.Background(), pending))

		req := httptest.NewRequest("GET", "/api/v1/submissions/"+pending.ID+"/status", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "processing", resp["status"])
	})
}

func TestRetryReview(t *testing.T) {
	fc := &fakeCompleter{err: &llm.ExhaustedError{
		Models: []string{"model-a"}, Attempts: 6, Kind: llm.KindRateLimited,
	}}
	srv, s := setupTestServer(t, fc, goodExtract)
	router := srv.Router()

	id := createSubmission(t, router, `{"file_path":"/tmp/paper.pdf"}`)

	sub, err := s.GetSubmission(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, sub.AllAccepted)

	// The service recovers; retrying one reviewer should replace only that
	// reviewer's outcome.
	fc.err = nil
	fc.text = acceptedReview

	req := httptest.NewRequest("POST", "/api/v1/submissions/"+id+"/reviews/Reviewer%202/retry", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success     bool        `json:"success"`
		Result      outcomeView `json:"result"`
		AllAccepted bool        `json:"all_accepted"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "ACCEPTED", resp.Result.Decision)
	// The other two reviewers still hold ERROR outcomes.
	assert.False(t, resp.AllAccepted)

	outcomes, err := s.ListReviewOutcomes(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
}

func TestRetryReviewNotFound(t *testing.T) {
	srv, _ := setupTestServer(t, &fakeCompleter{text: acceptedReview}, goodExtract)

	req := httptest.NewRequest("POST", "/api/v1/submissions/20260101_missing1/reviews/Reviewer%201/retry", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := setupTestServer(t, &fakeCompleter{text: acceptedReview}, goodExtract)

	req := httptest.NewRequest("OPTIONS", "/api/v1/submissions", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
