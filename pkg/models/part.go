package models

import (
	"time"

	"github.com/google/uuid"
)

// Part is a quoted manufacturing part. The CAD file and drawing page are
// stored by an external file-storage collaborator; this core only keeps the
// opaque source identifier used to key pipeline runs.
type Part struct {
	ID            uuid.UUID `json:"id"`
	SourceID      string    `json:"source_id"`
	Name          string    `json:"name"`
	MaterialClass string    `json:"material_class"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Material is a persisted material-class row mirroring the static lookup
// table, editable through quote administration.
type Material struct {
	ID            uuid.UUID `json:"id"`
	Class         string    `json:"class"`
	MRRMinPerCM3  float64   `json:"mrr_min_per_cm3"`
	SetupTimeMin  float64   `json:"setup_time_min"`
	CuttingSpeedM float64   `json:"cutting_speed_m_per_min"`
	FeedMMPerRev  float64   `json:"feed_mm_per_rev"`
	CreatedAt     time.Time `json:"created_at"`
}

// QuoteStatus is the lifecycle state of a quote.
type QuoteStatus string

const (
	QuoteDraft     QuoteStatus = "draft"
	QuoteEstimated QuoteStatus = "estimated"
	QuoteSent      QuoteStatus = "sent"
)

// Quote ties a part to its latest estimation result.
type Quote struct {
	ID           uuid.UUID   `json:"id"`
	PartID       uuid.UUID   `json:"part_id"`
	EstimationID *uuid.UUID  `json:"estimation_id,omitempty"`
	Quantity     int         `json:"quantity"`
	Status       QuoteStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
