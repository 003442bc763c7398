package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cuadrada/cuadrada/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes all access through Go's connection pool, which is what
	// makes the per-key upsert in SaveReviewOutcome atomic when several
	// reviewer-runs for one submission complete at the same time.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Submissions ---

func (s *SQLiteStore) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	if sub.ID == "" {
		sub.ID = models.NewSubmissionID()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (submission_id, paper_title, filename, file_path,
			processing_complete, all_accepted, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.PaperTitle, sub.Filename, sub.FilePath,
		boolToInt(sub.ProcessingComplete), boolToInt(sub.AllAccepted),
		sub.Error, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT submission_id, paper_title, filename, file_path,
			processing_complete, all_accepted, error, created_at
		FROM submissions WHERE submission_id = ?`, id)

	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("submission not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

func (s *SQLiteStore) ListSubmissions(ctx context.Context, limit int) ([]*models.Submission, error) {
	query := `
		SELECT submission_id, paper_title, filename, file_path,
			processing_complete, all_accepted, error, created_at
		FROM submissions ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []*models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *SQLiteStore) CompleteSubmission(ctx context.Context, id string, allAccepted bool, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE submissions
		SET processing_complete = 1, all_accepted = ?, error = ?
		WHERE submission_id = ?`,
		boolToInt(allAccepted), errMsg, id)
	if err != nil {
		return fmt.Errorf("complete submission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("submission not found: %s", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var sub models.Submission
	var complete, accepted int
	err := row.Scan(&sub.ID, &sub.PaperTitle, &sub.Filename, &sub.FilePath,
		&complete, &accepted, &sub.Error, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	sub.ProcessingComplete = complete != 0
	sub.AllAccepted = accepted != 0
	return &sub, nil
}

// --- Review outcomes ---

// SaveReviewOutcome inserts a reviewer's outcome, replacing any existing
// outcome for the same (submission, reviewer) pair in a single statement.
// The replace-on-conflict is what lets a single-reviewer retry swap in a
// fresh outcome without a read-modify-write race.
func (s *SQLiteStore) SaveReviewOutcome(ctx context.Context, o *models.ReviewOutcome) error {
	if o.ID == "" {
		o.ID = newULID()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	scoresJSON, err := json.Marshal(o.CriterionScores)
	if err != nil {
		return fmt.Errorf("marshal criterion scores: %w", err)
	}

	var composite any
	if o.CompositeScore != nil {
		composite = *o.CompositeScore
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO review_results (id, submission_id, reviewer_name, decision,
			accepted, summary, full_review, review_text, composite_score,
			criterion_scores, model_used, model_downgraded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (submission_id, reviewer_name) DO UPDATE SET
			decision = excluded.decision,
			accepted = excluded.accepted,
			summary = excluded.summary,
			full_review = excluded.full_review,
			review_text = excluded.review_text,
			composite_score = excluded.composite_score,
			criterion_scores = excluded.criterion_scores,
			model_used = excluded.model_used,
			model_downgraded = excluded.model_downgraded,
			created_at = excluded.created_at`,
		o.ID, o.SubmissionID, o.ReviewerName, string(o.Decision),
		boolToInt(o.Accepted), o.Summary, o.FullReview, o.ReviewText, composite,
		string(scoresJSON), o.ModelUsed, boolToInt(o.ModelDowngraded), o.CreatedAt)
	if err != nil {
		return fmt.Errorf("save review outcome: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListReviewOutcomes(ctx context.Context, submissionID string) ([]*models.ReviewOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, submission_id, reviewer_name, decision, accepted, summary,
			full_review, review_text, composite_score, criterion_scores,
			model_used, model_downgraded, created_at
		FROM review_results WHERE submission_id = ? ORDER BY reviewer_name`,
		submissionID)
	if err != nil {
		return nil, fmt.Errorf("list review outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*models.ReviewOutcome
	for rows.Next() {
		var o models.ReviewOutcome
		var accepted, downgraded int
		var composite sql.NullFloat64
		var scoresJSON string
		var decision string

		err := rows.Scan(&o.ID, &o.SubmissionID, &o.ReviewerName, &decision,
			&accepted, &o.Summary, &o.FullReview, &o.ReviewText, &composite,
			&scoresJSON, &o.ModelUsed, &downgraded, &o.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan review outcome: %w", err)
		}

		o.Decision = models.Decision(decision)
		o.Accepted = accepted != 0
		o.ModelDowngraded = downgraded != 0
		if composite.Valid {
			v := composite.Float64
			o.CompositeScore = &v
		}
		if err := json.Unmarshal([]byte(scoresJSON), &o.CriterionScores); err != nil {
			return nil, fmt.Errorf("unmarshal criterion scores: %w", err)
		}

		outcomes = append(outcomes, &o)
	}
	return outcomes, rows.Err()
}
