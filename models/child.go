package models

import "time"

// Child repräsentiert ein Patenkind, Ziel einer Sponsorship. Wird bei
// Bedarf während der Klassifizierung angelegt.
type Child struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name string `json:"name" gorm:"uniqueIndex;not null"`
}

// TableName gibt explizit den Tabellennamen an.
func (Child) TableName() string {
	return "children"
}
