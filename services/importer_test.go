package services

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"donor-ledger/models"
)

const csvHeader = "Amount,Billing Details Name,Cust Email,Created Formatted,Description,Transaction ID,Cust ID,Cust Subscription Data ID,Status,Cust Subscription Data Plan Nickname"

func csvFile(rows ...string) string {
	return csvHeader + "\n" + strings.Join(rows, "\n") + "\n"
}

func TestImportFileCounts(t *testing.T) {
	db := newTestDB(t)
	s := NewImportService(db, zap.NewNop())

	file := csvFile(
		`25.00,Jane Doe,jane@example.com,2024-01-15,,t1,cus_1,,succeeded,`,
		`60.00,Jane Doe,jane@example.com,2024-01-15,"Monthly Sponsorship Donation for Wan,Orawan",t2,cus_1,,succeeded,`,
		`10.00,Bob Roe,bob@example.com,2024-01-16,,t3,cus_2,,failed,`,
	)
	summary := s.ImportFile(context.Background(), "export.csv", strings.NewReader(file))

	if summary.SucceededCount != 2 {
		t.Errorf("SucceededCount = %d, want 2", summary.SucceededCount)
	}
	if summary.SkippedCount != 1 {
		t.Errorf("SkippedCount = %d, want 1 (failed status)", summary.SkippedCount)
	}
	if summary.FailedCount != 0 {
		t.Errorf("FailedCount = %d, want 0", summary.FailedCount)
	}

	var donations int64
	db.Model(&models.Donation{}).Count(&donations)
	if donations != 3 {
		t.Errorf("donations = %d, want 3 (1 general + 2 sponsorship split)", donations)
	}
}

// Zweiter Lauf über dieselbe Datei: nichts wird neu angelegt.
func TestImportFileIdempotent(t *testing.T) {
	db := newTestDB(t)
	s := NewImportService(db, zap.NewNop())

	file := csvFile(
		`25.00,Jane Doe,jane@example.com,2024-01-15,,t1,cus_1,,succeeded,`,
		`60.00,Jane Doe,jane@example.com,2024-01-15,"Monthly Sponsorship Donation for Wan,Orawan",t2,cus_1,,succeeded,`,
	)
	s.ImportFile(context.Background(), "export.csv", strings.NewReader(file))
	summary := s.ImportFile(context.Background(), "export.csv", strings.NewReader(file))

	if summary.SucceededCount != 0 {
		t.Errorf("second run SucceededCount = %d, want 0", summary.SucceededCount)
	}
	if summary.SkippedCount != 2 {
		t.Errorf("second run SkippedCount = %d, want 2", summary.SkippedCount)
	}
}

// Eine kaputte Zeile blockiert den Rest des Batches nicht.
func TestImportFileRowIsolation(t *testing.T) {
	db := newTestDB(t)
	s := NewImportService(db, zap.NewNop())

	file := csvFile(
		`25.00,Jane Doe,jane@example.com,2024-01-15,,t1,cus_1,,succeeded,`,
		`garbage,Bob Roe,bob@example.com,2024-01-15,,t2,cus_2,,succeeded,`,
		`10.00,Ann Poe,ann@example.com,2024-01-16,,t3,cus_3,,succeeded,`,
	)
	summary := s.ImportFile(context.Background(), "export.csv", strings.NewReader(file))

	if summary.FailedCount != 1 {
		t.Fatalf("FailedCount = %d, want 1", summary.FailedCount)
	}
	if summary.SucceededCount != 2 {
		t.Errorf("SucceededCount = %d, want 2", summary.SucceededCount)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("len(Errors) = %d, want 1", len(summary.Errors))
	}

	entry := summary.Errors[0]
	if entry.Row != 3 {
		t.Errorf("error Row = %d, want 3 (1-based incl. header)", entry.Row)
	}
	if entry.Data["amount"] != "garbage" || entry.Data["email"] != "bob@example.com" {
		t.Errorf("sanitized data = %v, want the failing row's fields", entry.Data)
	}
	if _, ok := entry.Data["transaction_id"]; ok {
		t.Error("sanitized data must not carry extra fields")
	}
}

// Struktureller CSV-Fehler: leerer Zähler, genau ein synthetischer Eintrag.
func TestImportFileStructuralError(t *testing.T) {
	db := newTestDB(t)
	s := NewImportService(db, zap.NewNop())

	file := csvHeader + "\n" + `25.00,"unterminated,jane@example.com,2024-01-15,,t1,cus_1,,succeeded,` + "\n"
	summary := s.ImportFile(context.Background(), "broken.csv", strings.NewReader(file))

	if summary.SucceededCount != 0 || summary.FailedCount != 0 || summary.SkippedCount != 0 {
		t.Errorf("counts = %d/%d/%d, want all zero", summary.SucceededCount, summary.FailedCount, summary.SkippedCount)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("len(Errors) = %d, want exactly 1", len(summary.Errors))
	}
	if !strings.Contains(summary.Errors[0].Message, "CSV parse error") {
		t.Errorf("Message = %q, want CSV parse error", summary.Errors[0].Message)
	}

	var donations int64
	db.Model(&models.Donation{}).Count(&donations)
	if donations != 0 {
		t.Errorf("donations = %d, want 0", donations)
	}
}

func TestImportFileMissingColumn(t *testing.T) {
	db := newTestDB(t)
	s := NewImportService(db, zap.NewNop())

	file := "Amount,Billing Details Name\n25.00,Jane Doe\n"
	summary := s.ImportFile(context.Background(), "short.csv", strings.NewReader(file))

	if len(summary.Errors) != 1 {
		t.Fatalf("len(Errors) = %d, want 1", len(summary.Errors))
	}
	if !strings.Contains(summary.Errors[0].Message, "missing required column") {
		t.Errorf("Message = %q, want missing-column diagnosis", summary.Errors[0].Message)
	}
}

func TestImportFilePersistsRun(t *testing.T) {
	db := newTestDB(t)
	s := NewImportService(db, zap.NewNop())

	file := csvFile(`25.00,Jane Doe,jane@example.com,2024-01-15,,t1,cus_1,,succeeded,`)
	s.ImportFile(context.Background(), "export.csv", strings.NewReader(file))

	done, err := s.AlreadyImported("export.csv")
	if err != nil {
		t.Fatalf("AlreadyImported error = %v", err)
	}
	if !done {
		t.Error("AlreadyImported = false after import")
	}

	runs, err := s.RecentRuns(10)
	if err != nil {
		t.Fatalf("RecentRuns error = %v", err)
	}
	if len(runs) != 1 || runs[0].SucceededCount != 1 {
		t.Errorf("runs = %+v, want one run with SucceededCount 1", runs)
	}
}

func TestImportFileErrorCap(t *testing.T) {
	db := newTestDB(t)
	s := NewImportService(db, zap.NewNop())
	s.MaxErrors = 2

	file := csvFile(
		`bad,A,a@example.com,2024-01-15,,t1,,,succeeded,`,
		`bad,B,b@example.com,2024-01-15,,t2,,,succeeded,`,
		`bad,C,c@example.com,2024-01-15,,t3,,,succeeded,`,
	)
	summary := s.ImportFile(context.Background(), "export.csv", strings.NewReader(file))

	if summary.FailedCount != 3 {
		t.Errorf("FailedCount = %d, want 3", summary.FailedCount)
	}
	if len(summary.Errors) != 2 {
		t.Errorf("len(Errors) = %d, want capped at 2", len(summary.Errors))
	}
}
