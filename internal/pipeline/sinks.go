package pipeline

import (
	"context"

	"alertlens/internal/normalize"
	"alertlens/internal/output/webhook"
	"alertlens/pkg/models"
)

// AlertSource yields raw alerts for the normalize stage.
type AlertSource interface {
	Drain(ctx context.Context) ([]normalize.Record, error)
	Close() error
}

// MatchWriter receives match results in addition to the JSONL artifact.
type MatchWriter interface {
	WriteMatches(ctx context.Context, runID string, results []models.MatchResult) error
	Close() error
}

// ReportWriter receives the final takeaways.
type ReportWriter interface {
	Post(ctx context.Context, p webhook.Payload) error
	Close() error
}
