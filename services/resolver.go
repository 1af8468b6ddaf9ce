package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"donor-ledger/models"
)

// ErrSupersededCycle wird gemeldet, wenn eine superseded_by-Kette nicht
// terminiert. Das Verhalten bei zirkulären Merges ist undefiniert; wir
// brechen ab, statt still einen Gewinner zu wählen.
var ErrSupersededCycle = errors.New("superseded chain does not terminate")

// placeholderEmailDomain ist die feste Domain für synthetisierte
// Platzhalter-Adressen, wenn eine Zeile keine E-Mail trägt.
const placeholderEmailDomain = "placeholder.invalid"

// DonorAttributes sind die eingehenden Identitätsfelder einer Import-Zeile.
type DonorAttributes struct {
	Name        string
	Email       string
	Phone       string
	AddressLine string
	City        string
	PostalCode  string
	Country     string
}

// Resolution ist das Ergebnis einer Identitätsauflösung.
type Resolution struct {
	Donor *models.Donor
	// Created ist true, wenn ein neuer Donor angelegt wurde.
	Created bool
	// Redirected ist true, wenn die superseded_by-Kette auf einen anderen
	// Donor umgeleitet hat.
	Redirected bool
}

// DonorResolver findet oder erstellt einen Donor zu einer externen
// Customer-ID und/oder E-Mail. Deterministisch; der einzige Schreibzugriff
// ist das eine beschriebene Donor-Update bzw. -Create.
type DonorResolver struct {
	logger *zap.Logger
}

// NewDonorResolver erstellt einen neuen DonorResolver.
func NewDonorResolver(logger *zap.Logger) *DonorResolver {
	return &DonorResolver{logger: logger}
}

// Resolve löst die Donor-Identität innerhalb der übergebenen
// Transaktion auf.
//
// Reihenfolge: zuerst über eine bereits getaggte Donation zur externen
// Customer-ID (folgt der superseded_by-Kette, vergleicht nie Timestamps),
// sonst über die (ggf. synthetisierte) E-Mail mit last-writer-wins auf asOf.
func (r *DonorResolver) Resolve(tx *gorm.DB, attrs DonorAttributes, asOf time.Time, externalCustomerID string) (*Resolution, error) {
	if externalCustomerID != "" {
		var donation models.Donation
		err := tx.Where("customer_id = ?", externalCustomerID).First(&donation).Error
		switch {
		case err == nil:
			donor, redirected, cErr := r.currentDonor(tx, donation.DonorID)
			if cErr != nil {
				return nil, cErr
			}
			return &Resolution{Donor: donor, Redirected: redirected}, nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, err
		}
	}

	email := strings.TrimSpace(attrs.Email)
	if email == "" {
		email = synthesizeEmail(attrs)
	}

	var donor models.Donor
	err := tx.Where("LOWER(email) = ?", strings.ToLower(email)).First(&donor).Error
	switch {
	case err == nil:
		if !asOf.Before(lastUpdated(&donor)) {
			applyAttributes(&donor, attrs)
			donor.LastUpdatedAt = asOf
			if err := tx.Save(&donor).Error; err != nil {
				return nil, err
			}
		}
		return &Resolution{Donor: &donor}, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		donor = models.Donor{
			Name:          strings.TrimSpace(attrs.Name),
			Email:         email,
			Phone:         strings.TrimSpace(attrs.Phone),
			AddressLine:   strings.TrimSpace(attrs.AddressLine),
			City:          strings.TrimSpace(attrs.City),
			PostalCode:    strings.TrimSpace(attrs.PostalCode),
			Country:       strings.TrimSpace(attrs.Country),
			LastUpdatedAt: asOf,
		}
		if err := tx.Create(&donor).Error; err != nil {
			return nil, err
		}
		return &Resolution{Donor: &donor, Created: true}, nil
	default:
		return nil, err
	}
}

// currentDonor folgt der superseded_by-Kette bis zum aktuellen,
// nicht-abgelösten Donor. Archivierte Glieder der Kette werden mitgelesen
// (Unscoped), das Ziel ist immer das letzte Glied. Ein Visited-Set
// verhindert Endlosschleifen bei zirkulären Ketten.
func (r *DonorResolver) currentDonor(tx *gorm.DB, donorID uint) (*models.Donor, bool, error) {
	visited := map[uint]bool{}
	id := donorID
	for {
		if visited[id] {
			return nil, false, fmt.Errorf("donor %d: %w", donorID, ErrSupersededCycle)
		}
		visited[id] = true

		var donor models.Donor
		if err := tx.Unscoped().First(&donor, id).Error; err != nil {
			return nil, false, err
		}
		if donor.SupersededByID == nil {
			return &donor, id != donorID, nil
		}
		id = *donor.SupersededByID
	}
}

// applyAttributes überträgt eingehende Felder auf den bestehenden Donor.
// Leere eingehende Felder überschreiben nie einen vorhandenen Wert;
// das gilt feldweise, nicht als pauschales Update-Skip.
func applyAttributes(donor *models.Donor, attrs DonorAttributes) {
	setIfPresent(&donor.Name, attrs.Name)
	setIfPresent(&donor.Phone, attrs.Phone)
	setIfPresent(&donor.AddressLine, attrs.AddressLine)
	setIfPresent(&donor.City, attrs.City)
	setIfPresent(&donor.PostalCode, attrs.PostalCode)
	setIfPresent(&donor.Country, attrs.Country)
}

func setIfPresent(dst *string, incoming string) {
	if v := strings.TrimSpace(incoming); v != "" {
		*dst = v
	}
}

func lastUpdated(donor *models.Donor) time.Time {
	if donor.LastUpdatedAt.IsZero() {
		// Sehr altes Default-Datum: ein fehlender Stempel verliert immer.
		return time.Unix(0, 0)
	}
	return donor.LastUpdatedAt
}

// synthesizeEmail baut deterministisch eine Platzhalter-Adresse, in der
// Prioritätsreihenfolge Telefon → Adresse → Name.
func synthesizeEmail(attrs DonorAttributes) string {
	if digits := digitsOnly(attrs.Phone); digits != "" {
		return digits + "@" + placeholderEmailDomain
	}
	address := strings.Join([]string{attrs.AddressLine, attrs.City, attrs.PostalCode, attrs.Country}, " ")
	if slug := slugify(address); slug != "" {
		return slug + "@" + placeholderEmailDomain
	}
	if name := stripWhitespace(attrs.Name); name != "" {
		return strings.ToLower(name) + "@" + placeholderEmailDomain
	}
	return "unknown@" + placeholderEmailDomain
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteRune('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

func stripWhitespace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
