package database

import (
	"docchat-service/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/umakantv/go-utils/db"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// InitializeDatabase opens the SQLite database that backs the sqlite store.
// The backend creates its own table.
func InitializeDatabase(cfg *config.Config) *sqlx.DB {
	dbConfig := db.DatabaseConfig{
		DRIVER: "sqlite3",
		DB:     cfg.SQLitePath,
	}

	dbConn := db.GetDBConnection(dbConfig)

	logger.Info("Database initialized successfully", zap.String("path", cfg.SQLitePath))
	return dbConn
}
