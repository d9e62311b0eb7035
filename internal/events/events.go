package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/indextec/unit-uploader/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	// Upload batch events
	EventBatchStateChanged EventType = "batch_state_changed"
	EventBatchProgress     EventType = "batch_progress" // Aggregate 0-100
	EventFileProgress      EventType = "file_progress"  // Per-file fraction, bytes
	EventFileCompleted     EventType = "file_completed"
	EventBatchCompleted    EventType = "batch_completed"
	EventBatchFailed       EventType = "batch_failed"

	// Unit listing events
	EventUnitsLoading EventType = "units_loading"
	EventUnitsChanged EventType = "units_changed"
	EventUnitsError   EventType = "units_error"

	// Selection events
	EventSelectionChanged EventType = "selection_changed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// NewBase stamps a BaseEvent with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// BatchStateEvent represents orchestrator state transitions
type BatchStateEvent struct {
	BaseEvent
	BatchID   string
	OldState  string
	NewState  string
	FileIndex int // Only meaningful for the uploading state
	Error     error
}

// BatchProgressEvent carries the aggregate batch percentage
type BatchProgressEvent struct {
	BaseEvent
	BatchID  string
	Progress int // 0 to 100
}

// FileProgressEvent carries byte-level progress of the file in flight
type FileProgressEvent struct {
	BaseEvent
	BatchID      string
	FileIndex    int
	TotalFiles   int
	Name         string
	Fraction     float64 // 0.0 to 1.0
	BytesCurrent int64
	BytesTotal   int64
}

// FileCompletedEvent is published after one file's upload succeeded
type FileCompletedEvent struct {
	BaseEvent
	BatchID   string
	FileIndex int
	Name      string
	Link      string
}

// BatchCompletedEvent is published after transfers and webhook succeeded
type BatchCompletedEvent struct {
	BaseEvent
	BatchID  string
	Files    int
	Duration time.Duration
}

// BatchFailedEvent is published when the batch settles in the failed state
type BatchFailedEvent struct {
	BaseEvent
	BatchID string
	Error   error
}

// UnitsLoadingEvent is published when a listing page fetch starts or ends
type UnitsLoadingEvent struct {
	BaseEvent
	Page    int
	Loading bool
}

// UnitsChangedEvent is published after a page is merged into the unit set
type UnitsChangedEvent struct {
	BaseEvent
	Count     int
	Exhausted bool
}

// UnitsErrorEvent is published when a listing page fetch fails
type UnitsErrorEvent struct {
	BaseEvent
	Page  int
	Error error
}

// SelectionChangedEvent is published when selected files or the unit change
type SelectionChangedEvent struct {
	BaseEvent
	Files  int
	UnitID string
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking.
// Events for a full subscriber are dropped and counted.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range eb.all {
		close(ch)
	}
}

// UnsubscribeAll removes a subscription channel from every list it is on
// and closes it.
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	var found chan Event
	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				found = subCh
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			found = subCh
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}

	if found != nil {
		close(found)
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
