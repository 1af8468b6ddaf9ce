package models

import (
	"time"

	"gorm.io/gorm"
)

// Donor repräsentiert eine Spenderidentität.
//
// Donors werden nie hart gelöscht, solange sie Donations besitzen; beim
// Mergen werden sie archiviert (Soft-Delete) und per SupersededByID auf
// den Nachfolger umgeleitet.
type Donor struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Name string `json:"name"`
	// Eindeutig unter nicht-archivierten Donors (case-insensitive); wird
	// vom Resolver vor jedem Create geprüft.
	Email string `json:"email" gorm:"index;not null"`
	Phone string `json:"phone,omitempty"`

	AddressLine string `json:"address_line,omitempty"`
	City        string `json:"city,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	Country     string `json:"country,omitempty"`

	// Gesetzt, wenn dieser Donor in einen anderen gemergt wurde.
	SupersededByID *uint `json:"superseded_by_id,omitempty" gorm:"index"`

	// Für datumsbasierte Konfliktauflösung (last-writer-wins) bei
	// wiederholten oder ungeordneten Importen.
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// TableName gibt explizit den Tabellennamen an.
func (Donor) TableName() string {
	return "donors"
}
