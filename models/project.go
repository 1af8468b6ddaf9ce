package models

import "time"

// Projekt-Typen.
const (
	ProjectTypeGeneral     = "general"
	ProjectTypeCampaign    = "campaign"
	ProjectTypeSponsorship = "sponsorship"
)

// GeneralDonationProjectName ist der natürliche Schlüssel des
// System-Projekts für unkategorisierte Spenden.
const GeneralDonationProjectName = "General Donation"

// Project ist ein kategorisierter Spenden-Topf. "General Donation" ist ein
// geschütztes System-Projekt; Sponsorship-Projekte sind 1:1 mit einem Child
// über eine Sponsorship verknüpft.
type Project struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name string `json:"name" gorm:"uniqueIndex;not null"`
	Type string `json:"type" gorm:"index;default:'general'"`

	// System-Projekte sind nicht löschbar.
	System bool `json:"system" gorm:"default:false"`

	CampaignID string `json:"campaign_id,omitempty" gorm:"index"`

	// Fallback-Projekte aus unklassifizierbaren Beschreibungen werden für
	// die manuelle Durchsicht markiert.
	NeedsReview bool `json:"needs_review" gorm:"default:false"`
}

// TableName gibt explizit den Tabellennamen an.
func (Project) TableName() string {
	return "projects"
}
