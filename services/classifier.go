package services

import (
	"regexp"
	"strings"
)

// ClassificationKind benennt den Ziel-Topf einer Spendenbeschreibung.
type ClassificationKind string

const (
	KindSponsorship ClassificationKind = "sponsorship"
	KindGeneral     ClassificationKind = "general"
	KindCampaign    ClassificationKind = "campaign"
	KindNamedOther  ClassificationKind = "named_other"
)

// maxFallbackLabelLen begrenzt den Titel eines Ad-hoc-Projekts aus einer
// unklassifizierbaren Beschreibung.
const maxFallbackLabelLen = 100

// Classification ist das Ergebnis der Beschreibungs-Klassifizierung.
type Classification struct {
	Kind       ClassificationKind `json:"kind"`
	ChildNames []string           `json:"child_names,omitempty"`
	CampaignID string             `json:"campaign_id,omitempty"`
	Label      string             `json:"label,omitempty"`
}

// classificationRule ist ein (Matcher, Ergebnis)-Paar. Die Regeln werden in
// fester Prioritätsreihenfolge ausgewertet, der erste Treffer gewinnt.
// Ein Matcher, der nil liefert, reicht an die nächste Regel weiter.
type classificationRule struct {
	name  string
	match func(desc string) *Classification
}

var (
	sponsorshipPattern = regexp.MustCompile(`(?i)^Monthly Sponsorship Donation for\s+(.+)$`)
	campaignPattern    = regexp.MustCompile(`(?i)^Donation for Campaign\s+(\S+)$`)

	generalMonthlyPattern = regexp.MustCompile(`^\$\d+(?:\.\d+)?\s*-\s*General Monthly Donation$`)
	invoiceNumberPattern  = regexp.MustCompile(`^[A-Z0-9]{4,}-\d{4,}$`)
	emailPattern          = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	allDigitsPattern      = regexp.MustCompile(`^\d+$`)
)

// Bekannte Boilerplate-Texte des Processors, die keine echte Beschreibung
// tragen und als allgemeine Spende gezählt werden.
var generalBoilerplate = []string{
	"Subscription creation",
	"Captured via Payment app",
	"Payment for Stripe App",
}

// Classifier ordnet eine Freitext-Beschreibung einem Spenden-Topf zu.
// Reine Klassifizierung ohne Seiteneffekte; Entitäten legt der Aufrufer an.
type Classifier struct {
	rules []classificationRule
}

// NewClassifier erstellt den Classifier mit der festen Regelliste.
func NewClassifier() *Classifier {
	return &Classifier{
		rules: []classificationRule{
			{name: "sponsorship", match: matchSponsorship},
			{name: "general", match: matchGeneral},
			{name: "campaign", match: matchCampaign},
			{name: "fallback", match: matchFallback},
		},
	}
}

// Classify wertet die Regeln in Prioritätsreihenfolge aus. Die Fallback-Regel
// trifft immer, das Ergebnis ist daher nie leer.
func (c *Classifier) Classify(description string) Classification {
	desc := strings.TrimSpace(description)
	for _, rule := range c.rules {
		if result := rule.match(desc); result != nil {
			return *result
		}
	}
	// Unerreichbar, solange die Fallback-Regel registriert ist.
	return Classification{Kind: KindGeneral}
}

// matchSponsorship erkennt "Monthly Sponsorship Donation for <name>";
// <name> darf eine kommaseparierte Liste sein (geteilte Invoice mit
// mehreren Kindern). Bleibt nach dem Trimmen kein Name übrig, fällt die
// Beschreibung an die nächste Regel durch.
func matchSponsorship(desc string) *Classification {
	m := sponsorshipPattern.FindStringSubmatch(desc)
	if m == nil {
		return nil
	}
	var names []string
	for _, raw := range strings.Split(m[1], ",") {
		if name := strings.TrimSpace(raw); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return &Classification{Kind: KindSponsorship, ChildNames: names}
}

func matchGeneral(desc string) *Classification {
	general := &Classification{Kind: KindGeneral}
	if desc == "" {
		return general
	}
	if generalMonthlyPattern.MatchString(desc) ||
		invoiceNumberPattern.MatchString(desc) ||
		emailPattern.MatchString(desc) ||
		allDigitsPattern.MatchString(desc) {
		return general
	}
	for _, phrase := range generalBoilerplate {
		if strings.EqualFold(desc, phrase) {
			return general
		}
	}
	return nil
}

func matchCampaign(desc string) *Classification {
	m := campaignPattern.FindStringSubmatch(desc)
	if m == nil {
		return nil
	}
	return &Classification{Kind: KindCampaign, CampaignID: m[1]}
}

// matchFallback behandelt die (gekürzte) Beschreibung als Titel eines neuen
// Ad-hoc-Projekts, das für die manuelle Durchsicht markiert wird.
func matchFallback(desc string) *Classification {
	return &Classification{Kind: KindNamedOther, Label: truncateLabel(desc, maxFallbackLabelLen)}
}

func truncateLabel(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
