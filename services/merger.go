package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"donor-ledger/models"
)

// Argument-Fehler der Merge-Validierung; brechen den Merge synchron ab,
// bevor irgendetwas geschrieben wird.
var (
	ErrTooFewDonors        = errors.New("merge requires at least two donors")
	ErrDonorNotFound       = errors.New("donor not found")
	ErrMissingSelection    = errors.New("field selection missing")
	ErrSelectionOutsideSet = errors.New("field selection references a donor outside the merge set")
)

// MergeSelections bestimmt, von welchem Quell-Donor ein Feld des neuen
// Donors übernommen wird. name und email sind Pflichtfelder.
type MergeSelections struct {
	Name  uint `json:"name"`
	Email uint `json:"email"`
}

// MergeResult ist das Ergebnis eines Donor-Merges.
type MergeResult struct {
	Donor                  *models.Donor `json:"donor"`
	DonationsReassigned    int64         `json:"donationsReassigned"`
	SponsorshipsReassigned int64         `json:"sponsorshipsReassigned"`
}

// MergeService führt doppelte Spenderidentitäten zusammen. Wird von
// Administratoren aufgerufen, nicht vom Import-Pfad, und darf nicht
// parallel zu einem laufenden Batch-Import ausgeführt werden.
type MergeService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewMergeService erstellt einen neuen MergeService.
func NewMergeService(db *gorm.DB, logger *zap.Logger) *MergeService {
	return &MergeService{DB: db, Logger: logger}
}

// Merge führt die angegebenen Donors in einer Transaktion zu einem neuen
// Donor zusammen: Quell-E-Mails auf Platzhalter umschreiben, Quellen
// archivieren, Merge-Ziel anlegen, superseded_by stempeln, dann Donations
// und Sponsorships umhängen. Die Reihenfolge stellt sicher, dass kein
// Leser je eine Donation ohne auflösbaren Donor sieht.
func (s *MergeService) Merge(ctx context.Context, donorIDs []uint, selections MergeSelections) (*MergeResult, error) {
	if len(donorIDs) < 2 {
		return nil, ErrTooFewDonors
	}
	if selections.Name == 0 || selections.Email == 0 {
		return nil, ErrMissingSelection
	}

	inSet := map[uint]bool{}
	for _, id := range donorIDs {
		inSet[id] = true
	}
	if !inSet[selections.Name] || !inSet[selections.Email] {
		return nil, ErrSelectionOutsideSet
	}

	var result *MergeResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sources []models.Donor
		if err := tx.Unscoped().Where("id IN ?", donorIDs).Find(&sources).Error; err != nil {
			return err
		}
		if len(sources) != len(inSet) {
			return ErrDonorNotFound
		}

		byID := map[uint]*models.Donor{}
		for i := range sources {
			byID[sources[i].ID] = &sources[i]
		}

		// Ausgewählte Werte sichern, bevor die E-Mails umgeschrieben werden.
		mergedName := byID[selections.Name].Name
		mergedEmail := byID[selections.Email].Email

		for i := range sources {
			source := &sources[i]
			placeholder := fmt.Sprintf("merged-%d-%d@merged.invalid", source.ID, time.Now().UnixNano())
			if err := tx.Model(source).Update("email", placeholder).Error; err != nil {
				return err
			}
			if err := tx.Delete(source).Error; err != nil {
				return err
			}
		}

		merged := models.Donor{
			Name:          mergedName,
			Email:         mergedEmail,
			Phone:         byID[selections.Name].Phone,
			AddressLine:   byID[selections.Name].AddressLine,
			City:          byID[selections.Name].City,
			PostalCode:    byID[selections.Name].PostalCode,
			Country:       byID[selections.Name].Country,
			LastUpdatedAt: time.Now(),
		}
		if err := tx.Create(&merged).Error; err != nil {
			return err
		}

		err := tx.Unscoped().Model(&models.Donor{}).
			Where("id IN ?", donorIDs).
			Update("superseded_by_id", merged.ID).Error
		if err != nil {
			return err
		}

		donations := tx.Model(&models.Donation{}).
			Where("donor_id IN ?", donorIDs).
			Update("donor_id", merged.ID)
		if donations.Error != nil {
			return donations.Error
		}
		sponsorships := tx.Model(&models.Sponsorship{}).
			Where("donor_id IN ?", donorIDs).
			Update("donor_id", merged.ID)
		if sponsorships.Error != nil {
			return sponsorships.Error
		}

		result = &MergeResult{
			Donor:                  &merged,
			DonationsReassigned:    donations.RowsAffected,
			SponsorshipsReassigned: sponsorships.RowsAffected,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("Donors merged",
		zap.Uints("sources", donorIDs),
		zap.Uint("merged_id", result.Donor.ID),
		zap.Int64("donations_reassigned", result.DonationsReassigned),
		zap.Int64("sponsorships_reassigned", result.SponsorshipsReassigned))
	return result, nil
}
