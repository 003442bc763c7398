package models

import (
	"math/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Submission tracks one uploaded paper and the state of its review batch.
type Submission struct {
	ID                 string
	PaperTitle         string
	Filename           string
	FilePath           string
	ProcessingComplete bool
	AllAccepted        bool
	Error              string
	CreatedAt          time.Time
}

// NewSubmissionID generates a date-prefixed submission identifier,
// e.g. "20260901_4027rv9k". The suffix is taken from the tail of a ULID:
// the leading characters encode only the millisecond timestamp, so two
// submissions in the same instant would collide on them. The tail is pure
// entropy.
func NewSubmissionID() string {
	now := time.Now().UTC()
	entropy := rand.New(rand.NewSource(now.UnixNano()))
	id := ulid.MustNew(ulid.Timestamp(now), entropy).String()
	return now.Format("20060102") + "_" + strings.ToLower(id[len(id)-8:])
}
