package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/ruteri/host-directory/interfaces"
)

// MultiStore implements interfaces.EntryStore by replicating over several stores.
// Writes go to every available store; reads use the first store that has the key.
type MultiStore struct {
	stores []interfaces.EntryStore
	log    *slog.Logger
}

// NewMultiStore creates a replicated store.
func NewMultiStore(stores []interfaces.EntryStore, logger *slog.Logger) *MultiStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStore{
		stores: stores,
		log:    logger,
	}
}

// Fetch returns the value from the first available store that has key.
// ErrContentNotFound is returned only if every consulted store reports it.
func (m *MultiStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	var errs []error
	notFound := 0

	for _, store := range m.stores {
		if !store.Available(ctx) {
			m.log.Debug("Store unavailable",
				slog.String("store_name", store.Name()),
				slog.String("key", key))
			continue
		}

		data, err := store.Fetch(ctx, key)
		if err == nil {
			m.log.Debug("Fetched entry",
				slog.String("store_name", store.Name()),
				slog.String("key", key),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		if errors.Is(err, interfaces.ErrContentNotFound) {
			notFound++
		}
		errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
		m.log.Debug("Failed to fetch from store",
			slog.String("store_name", store.Name()),
			slog.String("key", key),
			"err", err)
	}

	if len(errs) > 0 && notFound == len(errs) {
		return nil, interfaces.ErrContentNotFound
	}

	m.log.Error("All stores failed to fetch entry",
		slog.String("key", key),
		slog.Int("failed_stores", len(errs)),
		slog.Duration("duration", time.Since(start)))

	if len(errs) == 0 {
		return nil, interfaces.ErrBackendUnavailable
	}
	return nil, fmt.Errorf("all stores failed to fetch %s: %w", key, errors.Join(errs...))
}

// Store saves data to all available stores. It succeeds if at least one store accepted it.
func (m *MultiStore) Store(ctx context.Context, key string, data []byte) error {
	return m.each(ctx, "store", key, func(store interfaces.EntryStore) error {
		return store.Store(ctx, key, data)
	})
}

// Delete removes key from all available stores. It succeeds if at least one store removed it.
func (m *MultiStore) Delete(ctx context.Context, key string) error {
	return m.each(ctx, "delete", key, func(store interfaces.EntryStore) error {
		return store.Delete(ctx, key)
	})
}

// List returns the union of keys below prefix across available stores.
func (m *MultiStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var errs []error
	listed := false

	for _, store := range m.stores {
		if !store.Available(ctx) {
			continue
		}
		storeKeys, err := store.List(ctx, prefix)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
			continue
		}
		listed = true
		keys = append(keys, storeKeys...)
	}

	if !listed {
		if len(errs) == 0 {
			return nil, interfaces.ErrBackendUnavailable
		}
		return nil, fmt.Errorf("all stores failed to list: %w", errors.Join(errs...))
	}

	slices.Sort(keys)
	return slices.Compact(keys), nil
}

// Available checks if any store is available.
func (m *MultiStore) Available(ctx context.Context) bool {
	for _, store := range m.stores {
		if store.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the name of this store.
func (m *MultiStore) Name() string {
	return "multi-store"
}

// LocationURI returns a combined location URI of all stores.
func (m *MultiStore) LocationURI() string {
	var locations []string
	for _, store := range m.stores {
		locations = append(locations, store.LocationURI())
	}

	return "multi:[" + strings.Join(locations, ",") + "]"
}

func (m *MultiStore) each(ctx context.Context, op, key string, fn func(interfaces.EntryStore) error) error {
	start := time.Now()
	var success bool
	var errs []error

	for _, store := range m.stores {
		if !store.Available(ctx) {
			m.log.Debug("Store unavailable", slog.String("store_name", store.Name()))
			continue
		}

		if err := fn(store); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
			m.log.Warn("Failed to "+op+" entry",
				slog.String("store_name", store.Name()),
				slog.String("key", key),
				"err", err)
			continue
		}
		success = true
	}

	if !success {
		m.log.Error("All stores failed to "+op+" entry",
			slog.String("key", key),
			slog.Int("failed_stores", len(errs)),
			slog.Duration("duration", time.Since(start)))
		if len(errs) == 0 {
			return interfaces.ErrBackendUnavailable
		}
		return fmt.Errorf("all stores failed to %s %s: %w", op, key, errors.Join(errs...))
	}

	return nil
}
