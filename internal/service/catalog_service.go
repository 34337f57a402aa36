package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/taskbook/internal/model"
	"github.com/stemsi/taskbook/internal/record"
	"github.com/stemsi/taskbook/internal/repository"
	"golang.org/x/sync/errgroup"
)

// CatalogService enumerates subjects. It never writes.
type CatalogService struct {
	records     repository.RecordRepository
	concurrency int
	log         zerolog.Logger
}

func NewCatalogService(records repository.RecordRepository, concurrency int, log zerolog.Logger) *CatalogService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &CatalogService{
		records:     records,
		concurrency: concurrency,
		log:         log.With().Str("component", "catalog_service").Logger(),
	}
}

// List summarises every subject, sorted by name. Subjects deleted while the
// listing runs are left out.
func (c *CatalogService) List(ctx context.Context) (summaries []model.SubjectSummary, err error) {
	defer observe("catalog_list", time.Now(), &err)

	names, err := c.records.List(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("Failed to enumerate subjects")
		return nil, fmt.Errorf("enumerate subjects: %w: %w", ErrStorageUnavailable, err)
	}

	found := make([]*model.SubjectSummary, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, name := range names {
		g.Go(func() error {
			data, err := c.records.Get(gctx, name)
			if errors.Is(err, repository.ErrRecordNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read %q: %w", name, err)
			}
			slots, err := record.Decode(data)
			if err != nil {
				return fmt.Errorf("decode %q: %w", name, err)
			}
			sub := model.Subject{Name: name, Capacity: len(slots), Slots: slots}
			summary := sub.Summary()
			found[i] = &summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.log.Error().Err(err).Msg("Failed to summarise subjects")
		return nil, storageIO("summarise subjects", err)
	}

	summaries = make([]model.SubjectSummary, 0, len(found))
	for _, s := range found {
		if s != nil {
			summaries = append(summaries, *s)
		}
	}
	return summaries, nil
}
