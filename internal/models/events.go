package models

import (
	"time"

	"github.com/google/uuid"
)

// Event sources.
const (
	SourceHTTP = "http"
	SourceTool = "tool"
	SourceCLI  = "cli"
)

// QuoteEvent records one computed quote. Amounts are decimal strings so
// values above 2^64 survive the round trip.
type QuoteEvent struct {
	ID         uuid.UUID `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source"`
	Pool       string    `json:"pool,omitempty"`
	AmountIn   string    `json:"amount_in"`
	ReserveIn  string    `json:"reserve_in"`
	ReserveOut string    `json:"reserve_out"`
	FeeBps     int64     `json:"fee_bps"`
	AmountOut  string    `json:"amount_out"`
}

// BuildEvent records one swap build attempt, successful or not.
type BuildEvent struct {
	ID           uuid.UUID `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Source       string    `json:"source"`
	ProgramID    string    `json:"program_id"`
	Pool         string    `json:"pool"`
	User         string    `json:"user"`
	AmountIn     string    `json:"amount_in"`
	MinAmountOut string    `json:"min_amount_out"`
	Verified     bool      `json:"verified"`
	Outcome      string    `json:"outcome"` // "ok" or the error kind
	Field        string    `json:"field,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
}

// Build outcomes besides the error kinds.
const (
	OutcomeOK       = "ok"
	OutcomeCanceled = "Canceled" // the caller went away
)

func NewQuoteEvent(source string) *QuoteEvent {
	return &QuoteEvent{ID: uuid.New(), Timestamp: time.Now().UTC(), Source: source}
}

func NewBuildEvent(source string) *BuildEvent {
	return &BuildEvent{ID: uuid.New(), Timestamp: time.Now().UTC(), Source: source}
}
