// Package reference owns the process-wide reference snapshot: the loaded
// table together with the catalog derived from it. Snapshots are immutable
// and swapped atomically, so readers never lock.
package reference

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/dataset"
	apperrors "github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/errors"
)

// Snapshot is one loaded reference table and its indices.
type Snapshot struct {
	Table    *dataset.Table
	Catalog  *catalog.Catalog
	Version  uint64
	Source   string
	LoadedAt time.Time
}

// Observer is notified after every load attempt.
type Observer interface {
	DatasetLoaded(rows int)
	DatasetLoadFailed()
}

// Holder serves the current snapshot and reloads it from a Source.
type Holder struct {
	source   dataset.Source
	current  atomic.Pointer[Snapshot]
	version  atomic.Uint64
	group    singleflight.Group
	observer Observer
	logger   *slog.Logger
}

// NewHolder creates an empty Holder. Call Load before serving.
func NewHolder(source dataset.Source, observer Observer) *Holder {
	return &Holder{
		source:   source,
		observer: observer,
		logger:   slog.Default().With("component", "reference-holder", "source", source.Name()),
	}
}

// NewStaticHolder wraps an already-built table, mainly for tests and tools.
func NewStaticHolder(table *dataset.Table) *Holder {
	h := &Holder{logger: slog.Default().With("component", "reference-holder", "source", "static")}
	h.current.Store(newSnapshot(table, 1, "static"))
	h.version.Store(1)
	return h
}

// Load performs the initial load. A failure here is fatal for the caller.
func (h *Holder) Load(ctx context.Context) (*Snapshot, error) {
	return h.Reload(ctx)
}

// Reload loads a fresh table and swaps it in. Concurrent calls share one
// load. On failure the previous snapshot keeps serving.
func (h *Holder) Reload(ctx context.Context) (*Snapshot, error) {
	if h.source == nil {
		return nil, fmt.Errorf("reloading reference data: %w: no source configured", apperrors.ErrDatasetUnavailable)
	}
	v, err, shared := h.group.Do("reload", func() (any, error) {
		start := time.Now()
		table, err := h.source.Load(ctx)
		if err != nil {
			if h.observer != nil {
				h.observer.DatasetLoadFailed()
			}
			return nil, err
		}
		snap := newSnapshot(table, h.version.Add(1), h.source.Name())
		h.current.Store(snap)
		if h.observer != nil {
			h.observer.DatasetLoaded(table.Len())
		}
		h.logger.Info("reference data loaded",
			"rows", table.Len(),
			"categories", len(snap.Catalog.Categories),
			"states", len(snap.Catalog.States),
			"version", snap.Version,
			"duration", time.Since(start),
		)
		return snap, nil
	})
	if err != nil {
		h.logger.Error("reference data load failed", "error", err)
		return nil, fmt.Errorf("loading reference data: %w", err)
	}
	if shared {
		h.logger.Debug("reload shared with concurrent caller")
	}
	return v.(*Snapshot), nil
}

// Current returns the active snapshot or ErrDatasetUnavailable before the
// first successful load.
func (h *Holder) Current() (*Snapshot, error) {
	snap := h.current.Load()
	if snap == nil {
		return nil, apperrors.ErrDatasetUnavailable
	}
	return snap, nil
}

func newSnapshot(table *dataset.Table, version uint64, source string) *Snapshot {
	return &Snapshot{
		Table:    table,
		Catalog:  catalog.Build(table.Records()),
		Version:  version,
		Source:   source,
		LoadedAt: time.Now().UTC(),
	}
}
