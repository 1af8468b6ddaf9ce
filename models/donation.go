package models

import "time"

// Donation repräsentiert eine einzelne Spende in Cent.
type Donation struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AmountCents   int64      `json:"amount_cents"`
	Date          *time.Time `json:"date,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	Status        string     `json:"status,omitempty"`

	DonorID uint `json:"donor_id" gorm:"index;not null"`

	ProjectID     *uint `json:"project_id,omitempty" gorm:"index"`
	SponsorshipID *uint `json:"sponsorship_id,omitempty" gorm:"index"`
	// Nur während des Imports gesetzt, bevor die Sponsorship existiert.
	ChildID *uint `json:"child_id,omitempty" gorm:"index"`

	// Externe IDs des Payment-Processors.
	InvoiceID      string `json:"invoice_id,omitempty" gorm:"index"`
	ChargeID       string `json:"charge_id,omitempty"`
	CustomerID     string `json:"customer_id,omitempty" gorm:"index"`
	SubscriptionID string `json:"subscription_id,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (Donation) TableName() string {
	return "donations"
}
