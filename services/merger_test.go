package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"donor-ledger/models"
)

func TestMergeValidation(t *testing.T) {
	db := newTestDB(t)
	s := NewMergeService(db, zap.NewNop())
	ctx := context.Background()

	if _, err := s.Merge(ctx, []uint{1}, MergeSelections{Name: 1, Email: 1}); !errors.Is(err, ErrTooFewDonors) {
		t.Errorf("single donor: err = %v, want ErrTooFewDonors", err)
	}
	if _, err := s.Merge(ctx, []uint{1, 2}, MergeSelections{Name: 1}); !errors.Is(err, ErrMissingSelection) {
		t.Errorf("missing email selection: err = %v, want ErrMissingSelection", err)
	}
	if _, err := s.Merge(ctx, []uint{1, 2}, MergeSelections{Name: 1, Email: 99}); !errors.Is(err, ErrSelectionOutsideSet) {
		t.Errorf("foreign selection: err = %v, want ErrSelectionOutsideSet", err)
	}
	if _, err := s.Merge(ctx, []uint{1, 2}, MergeSelections{Name: 1, Email: 2}); !errors.Is(err, ErrDonorNotFound) {
		t.Errorf("nonexistent donors: err = %v, want ErrDonorNotFound", err)
	}
}

func TestMergeReassignsAndRedirects(t *testing.T) {
	db := newTestDB(t)
	s := NewMergeService(db, zap.NewNop())
	r := NewDonorResolver(zap.NewNop())
	ctx := context.Background()

	a := models.Donor{Name: "Jane A", Email: "a@example.com"}
	b := models.Donor{Name: "Jane B", Email: "b@example.com"}
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("create a: %v", err)
	}
	if err := db.Create(&b).Error; err != nil {
		t.Fatalf("create b: %v", err)
	}

	child := models.Child{Name: "Wan"}
	if err := db.Create(&child).Error; err != nil {
		t.Fatalf("create child: %v", err)
	}
	donations := []models.Donation{
		{AmountCents: 1000, DonorID: a.ID, CustomerID: "cus_a", InvoiceID: "t1"},
		{AmountCents: 2000, DonorID: b.ID, CustomerID: "cus_b", InvoiceID: "t2"},
	}
	if err := db.Create(&donations).Error; err != nil {
		t.Fatalf("create donations: %v", err)
	}
	sponsorship := models.Sponsorship{DonorID: a.ID, ChildID: child.ID, ProjectID: 1, MonthlyAmountCents: 1000}
	if err := db.Create(&sponsorship).Error; err != nil {
		t.Fatalf("create sponsorship: %v", err)
	}

	result, err := s.Merge(ctx, []uint{a.ID, b.ID}, MergeSelections{Name: a.ID, Email: b.ID})
	if err != nil {
		t.Fatalf("Merge error = %v", err)
	}

	if result.Donor.Name != "Jane A" {
		t.Errorf("merged Name = %q, want %q", result.Donor.Name, "Jane A")
	}
	if result.Donor.Email != "b@example.com" {
		t.Errorf("merged Email = %q, want %q", result.Donor.Email, "b@example.com")
	}
	if result.DonationsReassigned != 2 {
		t.Errorf("DonationsReassigned = %d, want 2", result.DonationsReassigned)
	}
	if result.SponsorshipsReassigned != 1 {
		t.Errorf("SponsorshipsReassigned = %d, want 1", result.SponsorshipsReassigned)
	}

	// Jede Donation der Quellen zeigt jetzt auf den Merge-Donor.
	var count int64
	db.Model(&models.Donation{}).Where("donor_id = ?", result.Donor.ID).Count(&count)
	if count != 2 {
		t.Errorf("donations owned by merged donor = %d, want 2", count)
	}

	// Quellen sind archiviert und per superseded_by umgeleitet.
	var live int64
	db.Model(&models.Donor{}).Where("id IN ?", []uint{a.ID, b.ID}).Count(&live)
	if live != 0 {
		t.Errorf("source donors still live: %d", live)
	}
	var archived models.Donor
	if err := db.Unscoped().First(&archived, a.ID).Error; err != nil {
		t.Fatalf("load archived source: %v", err)
	}
	if archived.SupersededByID == nil || *archived.SupersededByID != result.Donor.ID {
		t.Errorf("superseded_by = %v, want %d", archived.SupersededByID, result.Donor.ID)
	}

	// Identitätsauflösung über die alte Customer-ID landet beim Merge-Donor.
	res, err := r.Resolve(db, DonorAttributes{}, time.Now(), "cus_a")
	if err != nil {
		t.Fatalf("Resolve error = %v", err)
	}
	if res.Donor.ID != result.Donor.ID {
		t.Errorf("resolved donor = %d, want merged %d", res.Donor.ID, result.Donor.ID)
	}
	if res.Created {
		t.Error("Created = true, want false")
	}
}
