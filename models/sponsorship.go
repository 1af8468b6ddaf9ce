package models

import "time"

// Sponsorship verknüpft Donor und Child mit einem monatlichen Pledge.
// Legt ihr Projekt automatisch an, falls es noch nicht existiert.
type Sponsorship struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DonorID   uint `json:"donor_id" gorm:"index;not null"`
	ChildID   uint `json:"child_id" gorm:"index;not null"`
	ProjectID uint `json:"project_id" gorm:"index;not null"`

	MonthlyAmountCents int64 `json:"monthly_amount_cents"`
}

// TableName gibt explizit den Tabellennamen an.
func (Sponsorship) TableName() string {
	return "sponsorships"
}
