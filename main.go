package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"donor-ledger/config"
	"donor-ledger/models"
	"donor-ledger/services"
	"donor-ledger/storage"

	s3client "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	donationsImportedCounter prometheus.Counter
	importRowsFailedCounter  prometheus.Counter
	importRowsSkippedCounter prometheus.Counter
	donorsMergedCounter      prometheus.Counter
)

func init() {
	donationsImportedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "import_rows_succeeded_total",
		Help: "Total number of successfully imported rows.",
	})
	importRowsFailedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "import_rows_failed_total",
		Help: "Total number of failed import rows.",
	})
	importRowsSkippedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "import_rows_skipped_total",
		Help: "Total number of skipped import rows.",
	})
	donorsMergedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "donors_merged_total",
		Help: "Total number of donor merge operations.",
	})
	prometheus.MustRegister(donationsImportedCounter, importRowsFailedCounter, importRowsSkippedCounter, donorsMergedCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to donation database.")

	logging.Info("Running database auto-migration...")
	db.AutoMigrate(
		&models.Donor{},
		&models.ExternalInvoice{},
		&models.Donation{},
		&models.Child{},
		&models.Project{},
		&models.Sponsorship{},
		&models.ImportRun{},
	)

	// Das System-Projekt für allgemeine Spenden existiert ab Boot.
	catalog := services.NewCatalog(logging)
	if _, err := catalog.GeneralDonationProject(db); err != nil {
		logging.Fatal("Failed to bootstrap general donation project", zap.Error(err))
	}

	importService := services.NewImportService(db, logging)
	importService.MaxErrors = cfg.MaxImportErrors
	mergeService := services.NewMergeService(db, logging)

	s3Client, err := storage.NewS3Client(cfg)
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "donor-ledger"})
	})

	setupImportRoutes(router, importService, s3Client, cfg, logging)
	setupDonorRoutes(router, db, mergeService, logging)
	setupDonationRoutes(router, db, logging)

	cronScheduler := cron.New()
	if cfg.ImportDropDir != "" {
		cronScheduler.AddFunc(cfg.CronSchedule, func() {
			logging.Info("Running scheduled drop-directory import...")
			runDropDirImport(importService, cfg, logging)
		})
		cronScheduler.Start()
	}

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func recordSummary(summary *services.ImportSummary) {
	donationsImportedCounter.Add(float64(summary.SucceededCount))
	importRowsFailedCounter.Add(float64(summary.FailedCount))
	importRowsSkippedCounter.Add(float64(summary.SkippedCount))
}

func setupImportRoutes(router *gin.Engine, importService *services.ImportService, s3Client *s3client.Client, cfg *config.Config, log *zap.Logger) {
	rg := router.Group("/imports")

	// POST - CSV-Upload des Payment-Processor-Exports
	rg.POST("/", func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'file' form field"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			log.Error("Failed to open uploaded file", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			log.Error("Failed to read uploaded file", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
			return
		}

		summary := importService.ImportFile(c.Request.Context(), fileHeader.Filename, bytes.NewReader(data))
		recordSummary(summary)

		// Archivierung ist best-effort; ein S3-Fehler kippt den Import nicht.
		key := fmt.Sprintf("imports/%s/%s", time.Now().Format("2006-01-02"), fileHeader.Filename)
		if _, err := storage.ArchiveImportFile(c.Request.Context(), s3Client, cfg, key, data); err != nil {
			log.Warn("Failed to archive import file", zap.String("key", key), zap.Error(err))
		}

		c.JSON(http.StatusOK, summary)
	})

	// GET - letzte Import-Läufe
	rg.GET("/", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		runs, err := importService.RecentRuns(limit)
		if err != nil {
			log.Error("Failed to list import runs", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, runs)
	})
}

func setupDonorRoutes(router *gin.Engine, db *gorm.DB, mergeService *services.MergeService, log *zap.Logger) {
	rg := router.Group("/donors")

	rg.GET("/:id", func(c *gin.Context) {
		id := c.Param("id")
		var donor models.Donor
		if err := db.First(&donor, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "donor not found"})
				return
			}
			log.Error("DB error fetching donor", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, donor)
	})

	rg.POST("/query", func(c *gin.Context) {
		type DonorQuery struct {
			Email string `json:"email"`
			Name  string `json:"name"`
			Limit int    `json:"limit"`
		}
		var req DonorQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		query := db.Model(&models.Donor{})
		if req.Email != "" {
			query = query.Where("LOWER(email) = ?", strings.ToLower(req.Email))
		}
		if req.Name != "" {
			query = query.Where("name LIKE ?", "%"+req.Name+"%")
		}
		if req.Limit > 0 {
			query = query.Limit(req.Limit)
		}

		var donors []models.Donor
		if err := query.Order("created_at desc").Find(&donors).Error; err != nil {
			log.Error("Database query for donors failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, donors)
	})

	// POST - Donor-Merge durch Administratoren
	rg.POST("/merge", func(c *gin.Context) {
		var req struct {
			DonorIDs        []uint                   `json:"donor_ids" binding:"required"`
			FieldSelections services.MergeSelections `json:"field_selections"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		result, err := mergeService.Merge(c.Request.Context(), req.DonorIDs, req.FieldSelections)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTooFewDonors),
				errors.Is(err, services.ErrMissingSelection),
				errors.Is(err, services.ErrSelectionOutsideSet),
				errors.Is(err, services.ErrDonorNotFound):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				log.Error("Donor merge failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "merge failed"})
			}
			return
		}

		donorsMergedCounter.Inc()
		c.JSON(http.StatusOK, result)
	})
}

func setupDonationRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/donations")

	rg.POST("/query", func(c *gin.Context) {
		type DonationQuery struct {
			DonorID   uint   `json:"donor_id"`
			ProjectID uint   `json:"project_id"`
			InvoiceID string `json:"invoice_id"`
			Limit     int    `json:"limit"`
		}
		var req DonationQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		query := db.Model(&models.Donation{})
		if req.DonorID != 0 {
			query = query.Where("donor_id = ?", req.DonorID)
		}
		if req.ProjectID != 0 {
			query = query.Where("project_id = ?", req.ProjectID)
		}
		if req.InvoiceID != "" {
			query = query.Where("invoice_id = ?", req.InvoiceID)
		}
		if req.Limit > 0 {
			query = query.Limit(req.Limit)
		}

		var donations []models.Donation
		if err := query.Order("created_at desc").Find(&donations).Error; err != nil {
			log.Error("Database query for donations failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, donations)
	})
}

// runDropDirImport importiert alle noch nicht verarbeiteten CSV-Dateien aus
// dem Drop-Verzeichnis. Bereits verarbeitete Dateien werden über den
// ImportRun zur Quelle erkannt.
func runDropDirImport(importService *services.ImportService, cfg *config.Config, log *zap.Logger) {
	entries, err := os.ReadDir(cfg.ImportDropDir)
	if err != nil {
		log.Error("Failed to read import drop directory", zap.String("dir", cfg.ImportDropDir), zap.Error(err))
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".csv") {
			continue
		}

		done, err := importService.AlreadyImported(entry.Name())
		if err != nil {
			log.Error("Failed to check import run", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		if done {
			continue
		}

		path := filepath.Join(cfg.ImportDropDir, entry.Name())
		file, err := os.Open(path)
		if err != nil {
			log.Error("Failed to open drop file", zap.String("path", path), zap.Error(err))
			continue
		}

		summary := importService.ImportFile(context.Background(), entry.Name(), file)
		file.Close()
		recordSummary(summary)

		log.Info("Drop-directory file imported",
			zap.String("file", entry.Name()),
			zap.Int("succeeded", summary.SucceededCount),
			zap.Int("failed", summary.FailedCount),
			zap.Int("skipped", summary.SkippedCount))
	}
}
