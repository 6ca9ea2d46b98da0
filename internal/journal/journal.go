package journal

import (
	"context"
	"time"

	"freqtrade-mcp/internal/domain"

	"github.com/google/uuid"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// Recorder persists state-changing tool invocations.
type Recorder interface {
	Record(ctx context.Context, entry domain.JournalEntry) error
	Recent(ctx context.Context, limit int) ([]domain.JournalEntry, error)
}

// NewEntry stamps an entry with a fresh id and the current UTC time.
func NewEntry(tool string, mode domain.Mode) domain.JournalEntry {
	return domain.JournalEntry{
		ID:        uuid.NewString(),
		Tool:      tool,
		Mode:      mode,
		Outcome:   domain.OutcomeOK,
		Timestamp: time.Now().UTC(),
	}
}

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultRecentLimit
	}
	if limit > maxRecentLimit {
		return maxRecentLimit
	}
	return limit
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(ctx context.Context, entry domain.JournalEntry) error { return nil }

func (Nop) Recent(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	return []domain.JournalEntry{}, nil
}
