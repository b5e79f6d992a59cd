package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MatchRun represents one persisted reconciliation run for data transfer
// between layers. ResultJSON holds the serialized MatrixResult.
type MatchRun struct {
	ID              uuid.UUID       `json:"id"`
	Status          string          `json:"status"`
	MatchThreshold  int             `json:"match_threshold"`
	AmountTolerance float64         `json:"amount_tolerance"`
	InvoiceCount    int             `json:"invoice_count"`
	POCount         int             `json:"po_count"`
	ResultJSON      json.RawMessage `json:"result_json,omitempty"`
	ErrorMessage    *string         `json:"error_message,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      *time.Time      `json:"finished_at,omitempty"`
}
