package services

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"donor-ledger/models"
)

// Catalog bündelt die Find-or-Create-Pfade für Children, Projects und
// Sponsorships, die der Import-Pfad konsumiert.
type Catalog struct {
	logger *zap.Logger
}

// NewCatalog erstellt einen neuen Catalog.
func NewCatalog(logger *zap.Logger) *Catalog {
	return &Catalog{logger: logger}
}

// FindOrCreateChild findet ein Child über den Namen oder legt es an.
func (c *Catalog) FindOrCreateChild(tx *gorm.DB, name string) (*models.Child, error) {
	var child models.Child
	err := tx.Where(models.Child{Name: name}).FirstOrCreate(&child).Error
	if err != nil {
		return nil, err
	}
	return &child, nil
}

// GeneralDonationProject liefert das System-Projekt für allgemeine Spenden
// und legt es beim ersten Zugriff über seinen natürlichen Schlüssel an.
func (c *Catalog) GeneralDonationProject(tx *gorm.DB) (*models.Project, error) {
	var project models.Project
	err := tx.Where(models.Project{Name: models.GeneralDonationProjectName}).
		Attrs(models.Project{Type: models.ProjectTypeGeneral, System: true}).
		FirstOrCreate(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// CampaignProject findet das Projekt zu einer Kampagnen-ID oder legt es an.
func (c *Catalog) CampaignProject(tx *gorm.DB, campaignID string) (*models.Project, error) {
	var project models.Project
	err := tx.Where(models.Project{Name: "Campaign " + campaignID}).
		Attrs(models.Project{Type: models.ProjectTypeCampaign, CampaignID: campaignID}).
		FirstOrCreate(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// ReviewProject legt ein Ad-hoc-Projekt zu einer unklassifizierbaren
// Beschreibung an, markiert für die manuelle Durchsicht. Nie ein
// System-Projekt.
func (c *Catalog) ReviewProject(tx *gorm.DB, label string) (*models.Project, error) {
	var project models.Project
	err := tx.Where(models.Project{Name: label}).
		Attrs(models.Project{Type: models.ProjectTypeGeneral, NeedsReview: true}).
		FirstOrCreate(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// EnsureSponsorship findet die Sponsorship zu (Donor, Child) oder legt sie
// an; das zugehörige Sponsorship-Projekt wird bei Bedarf miterstellt.
func (c *Catalog) EnsureSponsorship(tx *gorm.DB, donorID uint, child *models.Child, monthlyCents int64) (*models.Sponsorship, error) {
	var sponsorship models.Sponsorship
	err := tx.Where("donor_id = ? AND child_id = ?", donorID, child.ID).First(&sponsorship).Error
	if err == nil {
		return &sponsorship, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var project models.Project
	err = tx.Where(models.Project{Name: fmt.Sprintf("Sponsorship - %s", child.Name)}).
		Attrs(models.Project{Type: models.ProjectTypeSponsorship}).
		FirstOrCreate(&project).Error
	if err != nil {
		return nil, err
	}

	sponsorship = models.Sponsorship{
		DonorID:            donorID,
		ChildID:            child.ID,
		ProjectID:          project.ID,
		MonthlyAmountCents: monthlyCents,
	}
	if err := tx.Create(&sponsorship).Error; err != nil {
		return nil, err
	}
	return &sponsorship, nil
}
