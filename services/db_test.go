package services

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"donor-ledger/models"
)

var testDBCounter int64

// newTestDB öffnet eine frische In-Memory-Datenbank pro Test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.Donor{},
		&models.ExternalInvoice{},
		&models.Donation{},
		&models.Child{},
		&models.Project{},
		&models.Sponsorship{},
		&models.ImportRun{},
	)
	if err != nil {
		t.Fatalf("auto-migration failed: %v", err)
	}
	return db
}
