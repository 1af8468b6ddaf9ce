package services

import (
	"strings"
	"testing"
)

func TestClassifySponsorshipSingleChild(t *testing.T) {
	c := NewClassifier()

	result := c.Classify("Monthly Sponsorship Donation for Wan")
	if result.Kind != KindSponsorship {
		t.Fatalf("Kind = %q, want %q", result.Kind, KindSponsorship)
	}
	if len(result.ChildNames) != 1 || result.ChildNames[0] != "Wan" {
		t.Errorf("ChildNames = %v, want [Wan]", result.ChildNames)
	}
}

func TestClassifySponsorshipMultiChild(t *testing.T) {
	c := NewClassifier()

	result := c.Classify("Monthly Sponsorship Donation for Wan,Orawan")
	if result.Kind != KindSponsorship {
		t.Fatalf("Kind = %q, want %q", result.Kind, KindSponsorship)
	}
	if len(result.ChildNames) != 2 {
		t.Fatalf("len(ChildNames) = %d, want 2", len(result.ChildNames))
	}
	if result.ChildNames[0] != "Wan" || result.ChildNames[1] != "Orawan" {
		t.Errorf("ChildNames = %v, want [Wan Orawan]", result.ChildNames)
	}
}

// Eine Beschreibung, die gleichzeitig dem Sponsorship- und einem
// General-Pattern entspricht, gewinnt über die Prioritätsreihenfolge als
// Sponsorship.
func TestClassifyPriorityOrder(t *testing.T) {
	c := NewClassifier()

	result := c.Classify("Monthly Sponsorship Donation for 5551234567")
	if result.Kind != KindSponsorship {
		t.Errorf("Kind = %q, want %q (sponsorship wins over general)", result.Kind, KindSponsorship)
	}
}

// Nur Leerzeichen als Kindernamen: das Sponsorship-Pattern trifft, aber die
// Liste ist nach dem Trimmen leer und die Beschreibung fällt durch.
func TestClassifySponsorshipBlankNamesFallsThrough(t *testing.T) {
	c := NewClassifier()

	result := c.Classify("Monthly Sponsorship Donation for  ,  ")
	if result.Kind == KindSponsorship {
		t.Errorf("Kind = %q, blank child names must not classify as sponsorship", result.Kind)
	}
}

func TestClassifyGeneralPatterns(t *testing.T) {
	c := NewClassifier()

	cases := []string{
		"",
		"   ",
		"$50 - General Monthly Donation",
		"$25.50 - General Monthly Donation",
		"ABCD-0001",
		"donor@example.com",
		"1234567890",
		"Subscription creation",
		"Captured via Payment app",
		"Payment for Stripe App",
		"payment for stripe app",
	}
	for _, desc := range cases {
		if result := c.Classify(desc); result.Kind != KindGeneral {
			t.Errorf("Classify(%q).Kind = %q, want %q", desc, result.Kind, KindGeneral)
		}
	}
}

func TestClassifyCampaign(t *testing.T) {
	c := NewClassifier()

	result := c.Classify("Donation for Campaign spring2024")
	if result.Kind != KindCampaign {
		t.Fatalf("Kind = %q, want %q", result.Kind, KindCampaign)
	}
	if result.CampaignID != "spring2024" {
		t.Errorf("CampaignID = %q, want %q", result.CampaignID, "spring2024")
	}
}

func TestClassifyFallback(t *testing.T) {
	c := NewClassifier()

	result := c.Classify("In memory of Grandma Rose")
	if result.Kind != KindNamedOther {
		t.Fatalf("Kind = %q, want %q", result.Kind, KindNamedOther)
	}
	if result.Label != "In memory of Grandma Rose" {
		t.Errorf("Label = %q, want original description", result.Label)
	}
}

func TestClassifyFallbackTruncatesLabel(t *testing.T) {
	c := NewClassifier()

	long := strings.Repeat("x", 150)
	result := c.Classify(long)
	if result.Kind != KindNamedOther {
		t.Fatalf("Kind = %q, want %q", result.Kind, KindNamedOther)
	}
	if len(result.Label) != 100 {
		t.Errorf("len(Label) = %d, want 100", len(result.Label))
	}
}
