package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"4242"`

	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Cron-Import: Verzeichnis, das regelmäßig nach neuen CSV-Exporten
	// des Payment-Processors durchsucht wird. Leer = kein Cron-Import.
	ImportDropDir string `envconfig:"IMPORT_DROP_DIR"`
	CronSchedule  string `envconfig:"CRON_SCHEDULE" default:"0 * * * *"`

	// S3-kompatibler Speicher für das Archiv der importierten CSV-Dateien.
	ArchiveS3Key    string `envconfig:"ARCHIVE_S3_KEY" required:"true"`
	ArchiveS3Secret string `envconfig:"ARCHIVE_S3_SECRET" required:"true"`
	ArchiveS3URL    string `envconfig:"ARCHIVE_S3_URL" required:"true"`
	ArchiveS3Region string `envconfig:"ARCHIVE_S3_REGION" required:"true"`
	ArchiveS3Bucket string `envconfig:"ARCHIVE_S3_BUCKET" required:"true"`

	// Maximale Anzahl an Fehler-Einträgen pro Import-Report.
	MaxImportErrors int `envconfig:"MAX_IMPORT_ERRORS" default:"200"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
