package config

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tourbook "github.com/eugener/tourbook/internal"
	"github.com/eugener/tourbook/internal/catalog"
	"github.com/eugener/tourbook/internal/storage"
)

// Bootstrap seeds the catalog from the config file on first run. Tours whose
// id already exists are left alone.
func Bootstrap(ctx context.Context, cfg *Config, store storage.CatalogStore) error {
	var seeds []tourbook.TourDetail
	if cfg.Catalog.SeedDemo {
		seeds = append(seeds, catalog.DemoTours()...)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, e := range cfg.Tours {
		seeds = append(seeds, e.detail(now))
	}

	for i := range seeds {
		t := &seeds[i]
		existing, err := store.GetTour(ctx, t.ID)
		if err != nil && !errors.Is(err, tourbook.ErrNotFound) {
			return err
		}
		if existing != nil {
			continue
		}
		if err := store.CreateTour(ctx, t); err != nil {
			return err
		}
		slog.Info("bootstrapped tour", "id", t.ID, "title", t.Title)
	}
	return nil
}

func (e TourEntry) detail(now string) tourbook.TourDetail {
	images := e.Images
	if images == nil {
		images = []string{}
	}
	status := e.Status
	if status == "" {
		status = tourbook.StatusActive
	}
	return tourbook.TourDetail{Tour: tourbook.Tour{
		ID:             e.ID,
		Title:          e.Title,
		Description:    e.Description,
		Price:          e.Price,
		Duration:       e.Duration,
		Location:       e.Location,
		Category:       e.Category,
		Images:         images,
		Rating:         e.Rating,
		AvailableSlots: e.AvailableSlots,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}}
}
