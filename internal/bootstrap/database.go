package bootstrap

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/gocatalog/internal/config"
	"github.com/jonesrussell/gocatalog/internal/database"
	"github.com/jonesrussell/gocatalog/internal/logger"
)

// SetupDatabase opens the PostgreSQL connection pool.
func SetupDatabase(cfg *config.Config, log logger.Logger) (*sqlx.DB, error) {
	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database connection: %w", err)
	}

	log.Info("database connected",
		logger.String("host", cfg.Database.Host),
		logger.String("dbname", cfg.Database.DBName),
	)
	return db, nil
}
