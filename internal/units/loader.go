// Package units loads the remote unit listing page by page into a
// deduplicated set ordered by numeric id.
package units

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/indextec/unit-uploader/internal/constants"
	"github.com/indextec/unit-uploader/internal/events"
	"github.com/indextec/unit-uploader/internal/logging"
	"github.com/indextec/unit-uploader/internal/models"
)

// Lister fetches one page of units. page starts at 1.
type Lister interface {
	ListUnits(ctx context.Context, page, size int) ([]models.Unit, error)
}

// Loader accumulates pages from a Lister until a short page marks the
// listing exhausted. Only one fetch runs at a time; overlapping calls
// return immediately.
type Loader struct {
	lister   Lister
	pageSize int
	bus      *events.EventBus
	logger   *logging.Logger

	mu        sync.RWMutex
	byID      map[string]models.Unit
	sorted    []models.Unit
	options   []models.UnitOption
	nextPage  int
	loading   bool
	exhausted bool
	lastErr   error
}

// NewLoader creates a loader. pageSize <= 0 uses constants.DefaultPageSize.
// bus and logger may be nil.
func NewLoader(lister Lister, pageSize int, bus *events.EventBus, logger *logging.Logger) *Loader {
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Loader{
		lister:   lister,
		pageSize: pageSize,
		bus:      bus,
		logger:   logger,
		byID:     make(map[string]models.Unit),
		nextPage: constants.FirstPage,
	}
}

// FetchNextPage fetches and merges the next page. It is a no-op while
// another fetch is in flight or once the listing is exhausted. A failed
// fetch leaves the accumulated set and the cursor unchanged; the error is
// available from LastError.
func (l *Loader) FetchNextPage(ctx context.Context) {
	l.mu.Lock()
	if l.loading || l.exhausted {
		l.mu.Unlock()
		return
	}
	l.loading = true
	page := l.nextPage
	l.mu.Unlock()

	l.publish(&events.UnitsLoadingEvent{BaseEvent: events.NewBase(events.EventUnitsLoading), Page: page, Loading: true})

	records, err := l.lister.ListUnits(ctx, page, l.pageSize)

	l.mu.Lock()
	l.loading = false
	if err != nil {
		l.lastErr = err
		l.mu.Unlock()

		l.logger.Error().Err(err).Int("page", page).Msg("Failed to load units page")
		l.publish(&events.UnitsLoadingEvent{BaseEvent: events.NewBase(events.EventUnitsLoading), Page: page, Loading: false})
		l.publish(&events.UnitsErrorEvent{BaseEvent: events.NewBase(events.EventUnitsError), Page: page, Error: err})
		return
	}

	l.merge(records)
	l.lastErr = nil
	l.nextPage++
	if len(records) < l.pageSize {
		l.exhausted = true
	}
	count, exhausted := len(l.sorted), l.exhausted
	l.mu.Unlock()

	l.logger.Debug().Int("page", page).Int("records", len(records)).Int("total", count).Bool("exhausted", exhausted).Msg("Merged units page")
	l.publish(&events.UnitsLoadingEvent{BaseEvent: events.NewBase(events.EventUnitsLoading), Page: page, Loading: false})
	l.publish(&events.UnitsChangedEvent{BaseEvent: events.NewBase(events.EventUnitsChanged), Count: count, Exhausted: exhausted})
}

// merge must be called with mu held.
func (l *Loader) merge(records []models.Unit) {
	for _, r := range records {
		l.byID[r.ID] = r
	}

	sorted := lo.Values(l.byID)
	slices.SortFunc(sorted, func(a, b models.Unit) int {
		return CompareIDs(a.ID, b.ID)
	})
	l.sorted = sorted
	l.options = lo.Map(sorted, func(u models.Unit, _ int) models.UnitOption {
		return models.UnitOption{Key: u.ID, Label: u.Label()}
	})
}

// LoadAll fetches pages until the listing is exhausted. It stops at the
// first failed page and returns its error.
func (l *Loader) LoadAll(ctx context.Context) error {
	for !l.Exhausted() {
		if err := ctx.Err(); err != nil {
			return err
		}
		before := l.NextPage()
		l.FetchNextPage(ctx)
		if err := l.LastError(); err != nil {
			return err
		}
		if l.NextPage() == before && !l.Exhausted() {
			// Another caller holds the fetch; nothing more to do here
			return nil
		}
	}
	return nil
}

// Units returns a copy of the accumulated units, ascending by id.
func (l *Loader) Units() []models.Unit {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.sorted)
}

// Options returns the selector view: key is the id, label is "<id> - <displayName>".
func (l *Loader) Options() []models.UnitOption {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.options)
}

// Search filters Options by a case-insensitive substring of the label.
func (l *Loader) Search(query string) []models.UnitOption {
	query = strings.ToLower(strings.TrimSpace(query))
	opts := l.Options()
	if query == "" {
		return opts
	}
	return lo.Filter(opts, func(o models.UnitOption, _ int) bool {
		return strings.Contains(strings.ToLower(o.Label), query)
	})
}

// Lookup returns the loaded unit with id.
func (l *Loader) Lookup(id string) (models.Unit, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	u, ok := l.byID[id]
	return u, ok
}

// Loading reports whether a fetch is in flight.
func (l *Loader) Loading() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loading
}

// Exhausted reports whether the last page has been seen.
func (l *Loader) Exhausted() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.exhausted
}

// NextPage returns the page the next fetch will request.
func (l *Loader) NextPage() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextPage
}

// LastError returns the error of the most recent fetch, or nil if it succeeded.
func (l *Loader) LastError() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastErr
}

func (l *Loader) publish(e events.Event) {
	if l.bus != nil {
		l.bus.Publish(e)
	}
}
