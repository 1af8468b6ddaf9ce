package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"donor-ledger/models"
)

// Pflichtspalten des CSV-Exports.
const (
	colAmount         = "Amount"
	colName           = "Billing Details Name"
	colEmail          = "Cust Email"
	colDate           = "Created Formatted"
	colDescription    = "Description"
	colTransactionID  = "Transaction ID"
	colCustomerID     = "Cust ID"
	colSubscriptionID = "Cust Subscription Data ID"
	colStatus         = "Status"
	colNickname       = "Cust Subscription Data Plan Nickname"
)

var requiredColumns = []string{
	colAmount, colName, colEmail, colDate, colDescription,
	colTransactionID, colCustomerID, colSubscriptionID, colStatus, colNickname,
}

// ImportError ist ein Zeilen-Diagnoseeintrag für den Operator.
type ImportError struct {
	Row     int               `json:"row"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data"`
}

// ImportSummary ist das Batch-Ergebnis eines Imports.
type ImportSummary struct {
	SucceededCount int           `json:"succeededCount"`
	FailedCount    int           `json:"failedCount"`
	SkippedCount   int           `json:"skippedCount"`
	Errors         []ImportError `json:"errors"`
}

// ImportService iteriert alle Zeilen einer Datei, delegiert an den
// RowReconciler und aggregiert die Statistik. Zeilenfehler blockieren den
// Batch nie; nur ein struktureller CSV-Fehler ist Batch-fatal.
type ImportService struct {
	DB         *gorm.DB
	Logger     *zap.Logger
	Reconciler *RowReconciler

	// Obergrenze für Fehler-Einträge im Report; 0 = unbegrenzt.
	MaxErrors int
}

// NewImportService erstellt einen neuen ImportService.
func NewImportService(db *gorm.DB, logger *zap.Logger) *ImportService {
	return &ImportService{
		DB:         db,
		Logger:     logger,
		Reconciler: NewRowReconciler(db, logger),
	}
}

// ImportFile verarbeitet eine CSV-Datei strikt sequenziell, Zeile für
// Zeile. Die Zeilennummern sind 1-basiert inklusive Header, die erste
// Datenzeile ist also Zeile 2.
//
// Die Datei wird vorab vollständig geparst: bei einem strukturellen
// CSV-Fehler sind die Zeilengrenzen nicht mehr vertrauenswürdig, der Batch
// endet mit leeren Zählern und genau einem synthetischen Fehlereintrag.
func (s *ImportService) ImportFile(ctx context.Context, source string, file io.Reader) *ImportSummary {
	started := time.Now()
	summary := &ImportSummary{Errors: []ImportError{}}

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		summary.Errors = append(summary.Errors, ImportError{
			Row:     0,
			Message: fmt.Sprintf("CSV parse error: %v", err),
			Data:    map[string]string{},
		})
		s.persistRun(source, summary, started)
		return summary
	}
	if len(records) == 0 {
		summary.Errors = append(summary.Errors, ImportError{
			Row:     0,
			Message: "CSV file is empty",
			Data:    map[string]string{},
		})
		s.persistRun(source, summary, started)
		return summary
	}

	columns, err := columnIndex(records[0])
	if err != nil {
		summary.Errors = append(summary.Errors, ImportError{
			Row:     1,
			Message: err.Error(),
			Data:    map[string]string{},
		})
		s.persistRun(source, summary, started)
		return summary
	}

	for i, record := range records[1:] {
		rowNumber := i + 2
		row := buildRow(columns, record)

		result, err := s.Reconciler.ImportRow(ctx, row)
		switch {
		case err != nil:
			summary.FailedCount++
			if s.MaxErrors <= 0 || len(summary.Errors) < s.MaxErrors {
				summary.Errors = append(summary.Errors, ImportError{
					Row:     rowNumber,
					Message: err.Error(),
					Data:    sanitizeRow(row),
				})
			}
			s.Logger.Warn("Import row failed",
				zap.String("source", source),
				zap.Int("row", rowNumber),
				zap.Error(err))
		case result.Skipped:
			summary.SkippedCount++
		default:
			summary.SucceededCount++
		}
	}

	s.persistRun(source, summary, started)
	s.Logger.Info("Import finished",
		zap.String("source", source),
		zap.Int("succeeded", summary.SucceededCount),
		zap.Int("failed", summary.FailedCount),
		zap.Int("skipped", summary.SkippedCount))
	return summary
}

// AlreadyImported prüft, ob zu einer Quelle bereits ein ImportRun existiert.
// Der Cron-Import nutzt das, um Dateien nicht doppelt anzufassen.
func (s *ImportService) AlreadyImported(source string) (bool, error) {
	var count int64
	if err := s.DB.Model(&models.ImportRun{}).Where("source = ?", source).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// RecentRuns liefert die jüngsten ImportRuns für die Admin-Ansicht.
func (s *ImportService) RecentRuns(limit int) ([]models.ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.ImportRun
	err := s.DB.Order("created_at desc").Limit(limit).Find(&runs).Error
	return runs, err
}

// persistRun schreibt den Audit-Datensatz; ein Fehler dabei kippt den
// Import nicht mehr.
func (s *ImportService) persistRun(source string, summary *ImportSummary, started time.Time) {
	errorsJSON, err := json.Marshal(summary.Errors)
	if err != nil {
		errorsJSON = []byte("[]")
	}
	run := models.ImportRun{
		Source:         source,
		SucceededCount: summary.SucceededCount,
		FailedCount:    summary.FailedCount,
		SkippedCount:   summary.SkippedCount,
		Errors:         errorsJSON,
		DurationMS:     time.Since(started).Milliseconds(),
	}
	if err := s.DB.Create(&run).Error; err != nil {
		s.Logger.Warn("Failed to persist import run", zap.String("source", source), zap.Error(err))
	}
}

func columnIndex(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	for _, required := range requiredColumns {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}
	return columns, nil
}

func buildRow(columns map[string]int, record []string) ImportRow {
	field := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}
	return ImportRow{
		Amount:         field(colAmount),
		Name:           field(colName),
		Email:          field(colEmail),
		Date:           field(colDate),
		Description:    field(colDescription),
		Nickname:       field(colNickname),
		TransactionID:  field(colTransactionID),
		CustomerID:     field(colCustomerID),
		SubscriptionID: field(colSubscriptionID),
		Status:         field(colStatus),
	}
}

// sanitizeRow behält nur die für diese Zeile relevanten Felder im
// Fehlereintrag; Daten fremder Zeilen tauchen nie auf.
func sanitizeRow(row ImportRow) map[string]string {
	return map[string]string{
		"amount":      row.Amount,
		"name":        row.Name,
		"email":       row.Email,
		"description": row.Description,
		"nickname":    row.Nickname,
		"date":        row.Date,
		"status":      row.Status,
	}
}
