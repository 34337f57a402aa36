// Package app assembles the storage backend, event publisher and services
// shared by the server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/taskbook/internal/config"
	"github.com/stemsi/taskbook/internal/database"
	"github.com/stemsi/taskbook/internal/event"
	"github.com/stemsi/taskbook/internal/repository"
	"github.com/stemsi/taskbook/internal/service"
)

// App holds the wired services. Close releases the backend and Redis.
type App struct {
	Redis    *redis.Client // nil when REDIS_URL is unset
	Messages *config.Messages
	Subjects *service.SubjectService
	Catalog  *service.CatalogService
	Commands *service.CommandService

	closers []func()
}

// New opens storage and Redis as configured and builds the services.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	messages, err := config.LoadMessages(cfg.MessagesFile)
	if err != nil {
		return nil, err
	}

	a := &App{Messages: messages}

	records, closeRecords, err := repository.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.StorageBackend, err)
	}
	a.closers = append(a.closers, closeRecords)

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	var publisher event.Publisher = event.Nop{}
	if rdb != nil {
		a.Redis = rdb
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		publisher = event.NewRedisPublisher(rdb)
	}

	a.Subjects = service.NewSubjectService(records, publisher, cfg.MaxTasks, log)
	a.Catalog = service.NewCatalogService(records, cfg.CatalogConcurrency, log)
	a.Commands = service.NewCommandService(a.Subjects, a.Catalog, messages, log)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
