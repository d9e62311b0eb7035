// Package state provides observable state containers for the uploader.
package state

import (
	"slices"
	"sync"

	"github.com/indextec/unit-uploader/internal/events"
	"github.com/indextec/unit-uploader/internal/models"
)

// Selection holds the files picked for the next batch and the unit they
// will be associated with. In-memory only; it publishes
// selection_changed on every mutation. Thread-safe for concurrent access.
type Selection struct {
	eventBus *events.EventBus

	files []models.LocalFile
	unit  *models.Unit

	mu sync.RWMutex
}

// NewSelection creates an empty Selection. eventBus may be nil.
func NewSelection(eventBus *events.EventBus) *Selection {
	return &Selection{
		eventBus: eventBus,
		files:    make([]models.LocalFile, 0),
	}
}

// Add appends files in order. Duplicates are kept as distinct entries.
func (s *Selection) Add(files ...models.LocalFile) {
	if len(files) == 0 {
		return
	}
	s.mu.Lock()
	s.files = append(s.files, files...)
	s.mu.Unlock()
	s.publish()
}

// Remove drops the first entry equal to file. It reports whether one was found.
func (s *Selection) Remove(file models.LocalFile) bool {
	s.mu.Lock()
	i := slices.Index(s.files, file)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.files = slices.Delete(s.files, i, i+1)
	s.mu.Unlock()
	s.publish()
	return true
}

// Clear empties the file list. The unit is kept.
func (s *Selection) Clear() {
	s.mu.Lock()
	s.files = make([]models.LocalFile, 0)
	s.mu.Unlock()
	s.publish()
}

// SetAssociation sets the unit for the batch; nil clears it.
func (s *Selection) SetAssociation(unit *models.Unit) {
	s.mu.Lock()
	if unit != nil {
		u := *unit
		unit = &u
	}
	s.unit = unit
	s.mu.Unlock()
	s.publish()
}

// Files returns a copy of the selected files.
func (s *Selection) Files() []models.LocalFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.files)
}

// Association returns a copy of the selected unit, or nil.
func (s *Selection) Association() *models.Unit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.unit == nil {
		return nil
	}
	u := *s.unit
	return &u
}

// Count returns the number of selected files.
func (s *Selection) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Snapshot returns an independent copy of the current selection.
func (s *Selection) Snapshot() models.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := models.Selection{Files: slices.Clone(s.files)}
	if s.unit != nil {
		u := *s.unit
		snap.Unit = &u
	}
	return snap
}

func (s *Selection) publish() {
	if s.eventBus == nil {
		return
	}
	s.mu.RLock()
	count := len(s.files)
	unitID := ""
	if s.unit != nil {
		unitID = s.unit.ID
	}
	s.mu.RUnlock()

	s.eventBus.Publish(&events.SelectionChangedEvent{
		BaseEvent: events.NewBase(events.EventSelectionChanged),
		Files:     count,
		UnitID:    unitID,
	})
}
