package models

import (
	"time"

	"gorm.io/datatypes"
)

// ImportRun protokolliert einen Batch-Import als Audit-Datensatz.
type ImportRun struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Dateiname bzw. Quelle des Imports; der Cron-Import nutzt ihn, um
	// bereits verarbeitete Dateien zu erkennen.
	Source string `json:"source" gorm:"index"`

	SucceededCount int `json:"succeeded_count"`
	FailedCount    int `json:"failed_count"`
	SkippedCount   int `json:"skipped_count"`

	// Zeilen-Diagnosen als JSON (row, message, sanitisierte Felder).
	Errors datatypes.JSON `json:"errors,omitempty" gorm:"type:jsonb"`

	DurationMS int64 `json:"duration_ms"`
}

// TableName gibt explizit den Tabellennamen an.
func (ImportRun) TableName() string {
	return "import_runs"
}
