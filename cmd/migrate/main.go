package main

import (
	"os"
	"path/filepath"

	pgstore "github.com/dwarvesf/onchain-tracker/internal/store/postgres"
	"github.com/dwarvesf/onchain-tracker/internal/utils/config"
	"github.com/dwarvesf/onchain-tracker/internal/utils/logger"
)

func main() {
	appConfig := config.New()
	logger := logger.New(appConfig.Environment)
	defer logger.Sync()

	db := pgstore.New(appConfig, logger)

	dir := filepath.Join("migrations", "schema")
	if err := pgstore.Migrate(db, dir); err != nil {
		logger.Error("[main][Migrate] failed to run migrations", map[string]string{
			"dir":   dir,
			"error": err.Error(),
		})
		os.Exit(1)
	}

	logger.Info("Migrations completed successfully")
}
