package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"donor-ledger/models"
)

// ReasonAlreadyImported meldet, dass jede Idempotenz-Prüfung der Zeile ein
// Skip war.
const ReasonAlreadyImported = "Already imported"

// ImportRow ist eine Zeile des CSV-Exports des Payment-Processors.
type ImportRow struct {
	Amount         string
	Name           string
	Email          string
	Date           string
	Description    string
	Nickname       string
	TransactionID  string
	CustomerID     string
	SubscriptionID string
	Status         string
}

// RowResult beschreibt den Ausgang einer einzelnen Zeile.
type RowResult struct {
	Donations []models.Donation
	Skipped   bool
	Reason    string
}

// RowReconciler orchestriert eine Import-Zeile: Invoice-Dedup,
// Donor-Auflösung, Klassifizierung und Donation-Erstellung, alles in genau
// einer Transaktion. Jeder Fehler rollt sämtliche Effekte der Zeile zurück.
type RowReconciler struct {
	db         *gorm.DB
	resolver   *DonorResolver
	classifier *Classifier
	catalog    *Catalog
	logger     *zap.Logger
}

// NewRowReconciler erstellt einen neuen RowReconciler samt Sub-Services.
func NewRowReconciler(db *gorm.DB, logger *zap.Logger) *RowReconciler {
	return &RowReconciler{
		db:         db,
		resolver:   NewDonorResolver(logger),
		classifier: NewClassifier(),
		catalog:    NewCatalog(logger),
		logger:     logger,
	}
}

// ImportRow verarbeitet eine Zeile atomar. Nicht-erfolgreiche Zahlungen
// werden übersprungen (kein Fehler); bereits importierte Paare ebenfalls.
func (r *RowReconciler) ImportRow(ctx context.Context, row ImportRow) (*RowResult, error) {
	if !strings.EqualFold(strings.TrimSpace(row.Status), "succeeded") {
		return &RowResult{Skipped: true, Reason: "status not succeeded"}, nil
	}
	if strings.TrimSpace(row.TransactionID) == "" {
		return nil, errors.New("missing transaction id")
	}

	amountCents, err := ParseAmountCents(row.Amount)
	if err != nil {
		return nil, err
	}
	date, err := ParseRowDate(row.Date)
	if err != nil {
		return nil, err
	}

	var result *RowResult
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = r.reconcile(tx, row, amountCents, date)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *RowReconciler) reconcile(tx *gorm.DB, row ImportRow, amountCents int64, date time.Time) (*RowResult, error) {
	if _, err := r.findOrCreateInvoice(tx, row, amountCents, date); err != nil {
		return nil, err
	}

	resolution, err := r.resolver.Resolve(tx, DonorAttributes{
		Name:  row.Name,
		Email: row.Email,
	}, date, row.CustomerID)
	if err != nil {
		return nil, err
	}
	donor := resolution.Donor

	// Der Subscription-Nickname ist aussagekräftiger als der Freitext und
	// hat Vorrang, wenn vorhanden.
	description := row.Description
	if nickname := strings.TrimSpace(row.Nickname); nickname != "" {
		description = nickname
	}
	classification := r.classifier.Classify(description)

	if classification.Kind == KindSponsorship {
		return r.reconcileSponsorship(tx, row, donor, classification.ChildNames, amountCents, date)
	}

	project, err := r.projectFor(tx, classification)
	if err != nil {
		return nil, err
	}

	var existing int64
	err = tx.Model(&models.Donation{}).
		Where("invoice_id = ? AND project_id = ? AND sponsorship_id IS NULL", row.TransactionID, project.ID).
		Count(&existing).Error
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return &RowResult{Skipped: true, Reason: ReasonAlreadyImported}, nil
	}

	donation := models.Donation{
		AmountCents:    amountCents,
		Date:           &date,
		Status:         "succeeded",
		DonorID:        donor.ID,
		ProjectID:      &project.ID,
		InvoiceID:      row.TransactionID,
		CustomerID:     row.CustomerID,
		SubscriptionID: row.SubscriptionID,
	}
	if err := tx.Create(&donation).Error; err != nil {
		return nil, err
	}
	return &RowResult{Donations: []models.Donation{donation}}, nil
}

// reconcileSponsorship legt pro Kind eine Donation an. Der Invoice-Betrag
// wird gleichmäßig aufgeteilt, der Rest geht an das erste Kind. Bereits
// importierte (Invoice, Kind)-Paare werden übersprungen.
func (r *RowReconciler) reconcileSponsorship(tx *gorm.DB, row ImportRow, donor *models.Donor, childNames []string, amountCents int64, date time.Time) (*RowResult, error) {
	share := amountCents / int64(len(childNames))
	remainder := amountCents % int64(len(childNames))

	var donations []models.Donation
	for i, name := range childNames {
		child, err := r.catalog.FindOrCreateChild(tx, name)
		if err != nil {
			return nil, err
		}

		imported, err := r.childAlreadyImported(tx, row.TransactionID, child.ID)
		if err != nil {
			return nil, err
		}
		if imported {
			continue
		}

		childAmount := share
		if i == 0 {
			childAmount += remainder
		}

		childID := child.ID
		donation := models.Donation{
			AmountCents:    childAmount,
			Date:           &date,
			Status:         "succeeded",
			DonorID:        donor.ID,
			ChildID:        &childID,
			InvoiceID:      row.TransactionID,
			CustomerID:     row.CustomerID,
			SubscriptionID: row.SubscriptionID,
		}
		if err := tx.Create(&donation).Error; err != nil {
			return nil, err
		}

		// Die Sponsorship wird nach der Donation-Erstellung assoziiert;
		// ihr Projekt entsteht bei Bedarf mit.
		sponsorship, err := r.catalog.EnsureSponsorship(tx, donor.ID, child, childAmount)
		if err != nil {
			return nil, err
		}
		donation.SponsorshipID = &sponsorship.ID
		donation.ProjectID = &sponsorship.ProjectID
		if err := tx.Save(&donation).Error; err != nil {
			return nil, err
		}

		donations = append(donations, donation)
	}

	if len(donations) == 0 {
		return &RowResult{Skipped: true, Reason: ReasonAlreadyImported}, nil
	}
	return &RowResult{Donations: donations}, nil
}

// childAlreadyImported prüft den Idempotenz-Schlüssel (Invoice, Kind):
// entweder über die assoziierte Sponsorship oder über das transiente
// child_id-Tag, falls die Assoziierung unterbrochen wurde.
func (r *RowReconciler) childAlreadyImported(tx *gorm.DB, invoiceID string, childID uint) (bool, error) {
	var count int64
	err := tx.Model(&models.Donation{}).
		Where("invoice_id = ? AND (child_id = ? OR sponsorship_id IN (?))",
			invoiceID, childID,
			tx.Model(&models.Sponsorship{}).Select("id").Where("child_id = ?", childID)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *RowReconciler) projectFor(tx *gorm.DB, classification Classification) (*models.Project, error) {
	switch classification.Kind {
	case KindGeneral:
		return r.catalog.GeneralDonationProject(tx)
	case KindCampaign:
		return r.catalog.CampaignProject(tx, classification.CampaignID)
	case KindNamedOther:
		return r.catalog.ReviewProject(tx, classification.Label)
	default:
		return nil, fmt.Errorf("unexpected classification kind %q", classification.Kind)
	}
}

func (r *RowReconciler) findOrCreateInvoice(tx *gorm.DB, row ImportRow, amountCents int64, date time.Time) (*models.ExternalInvoice, error) {
	var invoice models.ExternalInvoice
	err := tx.Where("invoice_id = ?", row.TransactionID).First(&invoice).Error
	if err == nil {
		return &invoice, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	invoice = models.ExternalInvoice{
		InvoiceID:      row.TransactionID,
		AmountCents:    amountCents,
		InvoiceDate:    &date,
		CustomerID:     row.CustomerID,
		SubscriptionID: row.SubscriptionID,
	}
	if err := tx.Create(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}
