package models

import "time"

// ExternalInvoice ist der Dedup-Anker für einen Abrechnungsvorgang des
// Payment-Processors. Eine Invoice kann mehrere Donations tragen
// (Multi-Child-Sponsorship auf einer geteilten Invoice).
type ExternalInvoice struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Invoice-/Transaktions-ID des Processors, global eindeutig.
	InvoiceID string `json:"invoice_id" gorm:"uniqueIndex;not null"`

	// Gesamtbetrag in Cent (Integer-Arithmetik, keine Floats).
	AmountCents int64      `json:"amount_cents"`
	InvoiceDate *time.Time `json:"invoice_date,omitempty"`

	CustomerID     string `json:"customer_id,omitempty" gorm:"index"`
	SubscriptionID string `json:"subscription_id,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (ExternalInvoice) TableName() string {
	return "external_invoices"
}
