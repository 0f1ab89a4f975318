package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/fitadvisor/backend/internal/config"
	"github.com/fitadvisor/backend/internal/models"
)

// InitDB opens the PostgreSQL connection, bounds the connection pool and
// verifies connectivity. The pool is shared by all concurrent turns;
// acquire/use/release is handled by database/sql underneath gorm.
func InitDB(config *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(config.GetDSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access underlying connection pool: %w", err)
	}
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(3)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database connection test failed: %w", err)
	}

	// auto migrate schema
	if err := db.AutoMigrate(&models.Message{}, &models.Document{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Printf("Database connection pool created successfully (host: %s, database: %s)", config.DBHost, config.DBName)
	return db, nil
}
