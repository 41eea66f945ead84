package di

import (
	"fmt"

	"github.com/aristath/sentinel-ledger/internal/config"
	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the ledger database and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	ledgerDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Driver:  cfg.Database.Driver,
		Profile: database.ProfileLedger, // Maximum safety for financial records
		Name:    "ledger",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger database: %w", err)
	}

	if err := ledgerDB.Migrate(); err != nil {
		ledgerDB.Close()
		return nil, fmt.Errorf("failed to migrate ledger database: %w", err)
	}

	log.Info().
		Str("path", ledgerDB.Path()).
		Str("driver", ledgerDB.Driver()).
		Msg("Ledger database ready")

	return &Container{LedgerDB: ledgerDB}, nil
}
