// Package db is the gorm-backed credential store: accounts with sealed
// session tokens, the daily check-in log and guild notification settings.
package db

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"

	"github.com/glebarez/sqlite"
	"github.com/pysugar/checkin-nexus/internal/db/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	apiKeyConfig = "api_key"
)

// InitDB opens the database for driver and runs migrations.
func InitDB(driver, dsn string, verbose bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite, "":
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	level := logger.Warn
	if verbose {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	// Ensure API key exists (generate on first run)
	ensureAPIKey(db)

	return db, nil
}

// Migrate creates or updates every table the store uses.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Account{},
		&models.CheckinLog{},
		&models.Guild{},
		&models.GuildSetting{},
		&models.Config{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// ensureAPIKey generates the admin API key if not exists
func ensureAPIKey(db *gorm.DB) {
	var config models.Config
	result := db.Where("key = ?", apiKeyConfig).First(&config)

	if result.Error != nil {
		apiKey := newAPIKey()
		db.Create(&models.Config{
			Key:   apiKeyConfig,
			Value: apiKey,
		})
		log.Printf("🔑 Generated new API key: %s", apiKey)
	}
}

// GetAPIKey retrieves the admin API key from database
func GetAPIKey(db *gorm.DB) string {
	var config models.Config
	db.Where("key = ?", apiKeyConfig).First(&config)
	return config.Value
}

// RegenerateAPIKey replaces the admin API key
func RegenerateAPIKey(db *gorm.DB) string {
	apiKey := newAPIKey()
	db.Model(&models.Config{}).Where("key = ?", apiKeyConfig).Update("value", apiKey)
	log.Printf("🔑 Regenerated API key: %s", apiKey)
	return apiKey
}

// newAPIKey returns ck-<32 hex chars>.
func newAPIKey() string {
	keyBytes := make([]byte, 16)
	rand.Read(keyBytes)
	return "ck-" + hex.EncodeToString(keyBytes)
}
