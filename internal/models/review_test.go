package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeVerdict(t *testing.T) {
	t.Run("all accepted", func(t *testing.T) {
		v := ComputeVerdict([]*ReviewOutcome{
			{Decision: DecisionAccepted},
			{Decision: DecisionAccepted},
			{Decision: DecisionAccepted},
		})
		assert.True(t, v.AllAccepted)
		assert.Equal(t, 3, v.Accepted)
		assert.Zero(t, v.Revision+v.Rejected+v.Errors)
	})

	t.Run("mixed decisions", func(t *testing.T) {
		v := ComputeVerdict([]*ReviewOutcome{
			{Decision: DecisionAccepted},
			{Decision: DecisionRevision},
			{Decision: DecisionRejected},
			{Decision: DecisionError},
		})
		assert.False(t, v.AllAccepted)
		assert.Equal(t, 1, v.Accepted)
		assert.Equal(t, 1, v.Revision)
		assert.Equal(t, 1, v.Rejected)
		assert.Equal(t, 1, v.Errors)
	})

	t.Run("single error breaks all-accepted", func(t *testing.T) {
		v := ComputeVerdict([]*ReviewOutcome{
			{Decision: DecisionAccepted},
			{Decision: DecisionAccepted},
			{Decision: DecisionError},
		})
		assert.False(t, v.AllAccepted)
	})

	t.Run("empty set is never all-accepted", func(t *testing.T) {
		v := ComputeVerdict(nil)
		assert.False(t, v.AllAccepted)
	})
}

func TestNewSubmissionID(t *testing.T) {
	id := NewSubmissionID()

	parts := strings.SplitN(id, "_", 2)
	assert.Len(t, parts, 2)
	assert.Equal(t, time.Now().UTC().Format("20060102"), parts[0])
	assert.Len(t, parts[1], 8)
	assert.Equal(t, strings.ToLower(parts[1]), parts[1])
}

func TestNewSubmissionIDUnique(t *testing.T) {
	// IDs generated back to back land in the same millisecond; the suffix
	// must still differ.
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		id := NewSubmissionID()
		assert.False(t, seen[id], "duplicate submission ID: %s", id)
		seen[id] = true
	}
}
