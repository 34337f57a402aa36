package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/taskbook/internal/config"
	"github.com/stemsi/taskbook/internal/database"
)

// Open builds the record repository selected by cfg.StorageBackend. The
// returned close function releases the backend's resources.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (RecordRepository, func(), error) {
	switch cfg.StorageBackend {
	case config.BackendFile:
		repo, err := NewFileRecordRepository(cfg.StorageRoot, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("root", cfg.StorageRoot).Msg("Using file record storage")
		return repo, func() {}, nil

	case config.BackendBadger:
		db, err := database.NewBadgerDB(database.BadgerOptions{Path: cfg.BadgerPath}, log)
		if err != nil {
			return nil, nil, err
		}
		return NewBadgerRecordRepository(db), func() {
			if err := db.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close badger")
			}
		}, nil

	case config.BackendPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgresRecordRepository(pool), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
