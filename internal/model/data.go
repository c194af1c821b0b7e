package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// ScrapedData is one immutable raw capture from a source. Rows are
// append-only: later captures supersede earlier ones but history is
// retained for audit.
type ScrapedData struct {
	ID         string    `json:"id"`
	SourceID   string    `json:"source_id"`
	URL        string    `json:"url"`
	Raw        []byte    `json:"-"`
	StatusCode *int      `json:"status_code,omitempty"`
	ScrapedAt  time.Time `json:"scraped_at"`
}

// Validate checks referential fields before insertion.
func (d *ScrapedData) Validate() error {
	if d.SourceID == "" {
		return eris.New("scraped data: source_id is required")
	}
	return nil
}

// ProcessedData is one structured record derived from a ScrapedData by a
// module. A capture may fan out to many processed records, or none if
// processing has not run. Sentiment is a module-defined derived score.
type ProcessedData struct {
	ID            string         `json:"id"`
	ScrapedDataID string         `json:"scraped_data_id"`
	Title         string         `json:"title"`
	Content       string         `json:"content"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Module        string         `json:"module"`
	Sentiment     *float64       `json:"sentiment,omitempty"`
	ProcessedAt   time.Time      `json:"processed_at"`
}

// Validate checks referential fields before insertion.
func (d *ProcessedData) Validate() error {
	if d.ScrapedDataID == "" {
		return eris.New("processed data: scraped_data_id is required")
	}
	if d.Module == "" {
		return eris.New("processed data: module is required")
	}
	return nil
}
