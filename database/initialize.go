package database

import (
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/umakantv/go-utils/db"
	"github.com/umakantv/go-utils/db/migrations"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

func InitializeDatabase() *sqlx.DB {
	// Database configuration for SQLite.
	// _foreign_keys=on is required for the ON DELETE CASCADE chain
	// (user -> lists -> todos -> tag links) to actually fire.
	path := os.Getenv("DATABASE_PATH")
	if path == "" {
		path = "./todo_service.db"
	}
	config := db.DatabaseConfig{
		DRIVER: "sqlite3",
		DB:     path + "?_foreign_keys=on",
	}

	dbConn := db.GetDBConnection(config)

	err := migrations.Migrate(dbConn, "./database/migrations")
	if err != nil {
		logger.Error("Error while running migration", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Database initialized successfully")
	return dbConn
}
