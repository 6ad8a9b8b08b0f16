package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	tourbook "github.com/eugener/tourbook/internal"
	"github.com/eugener/tourbook/internal/storage"
)

// FiltersKey is the state key the filters are persisted under.
const FiltersKey = "tour-filters"

// FilterStore persists the user's filters across sessions.
type FilterStore interface {
	LoadFilters(ctx context.Context) (tourbook.Filters, error)
	SaveFilters(ctx context.Context, f tourbook.Filters) error
}

// StoredFilters keeps filters as JSON in a storage.StateStore.
type StoredFilters struct {
	Store storage.StateStore
}

// LoadFilters returns the saved filters, or the zero Filters when none were saved.
func (s StoredFilters) LoadFilters(ctx context.Context) (tourbook.Filters, error) {
	data, err := s.Store.GetState(ctx, FiltersKey)
	if errors.Is(err, tourbook.ErrNotFound) {
		return tourbook.Filters{}, nil
	}
	if err != nil {
		return tourbook.Filters{}, err
	}
	var f tourbook.Filters
	if err := json.Unmarshal(data, &f); err != nil {
		return tourbook.Filters{}, fmt.Errorf("decode %s: %w", FiltersKey, err)
	}
	return f, nil
}

// SaveFilters overwrites the saved filters.
func (s StoredFilters) SaveFilters(ctx context.Context, f tourbook.Filters) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode %s: %w", FiltersKey, err)
	}
	return s.Store.PutState(ctx, FiltersKey, data)
}
