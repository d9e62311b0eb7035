// Package upload runs one batch of sequential file uploads with aggregate
// progress, followed by a completion notification.
package upload

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/indextec/unit-uploader/internal/constants"
	"github.com/indextec/unit-uploader/internal/events"
	"github.com/indextec/unit-uploader/internal/logging"
	"github.com/indextec/unit-uploader/internal/models"
)

// Uploader transfers one file. onProgress may be called from another
// goroutine while Upload is running.
type Uploader interface {
	Upload(ctx context.Context, file models.LocalFile, unit *models.Unit, onProgress func(done, total int64)) (models.UploadedFile, error)
}

// Notifier posts the completion message with the ordered results.
type Notifier interface {
	NotifyBatchComplete(ctx context.Context, message string, files []models.UploadedFile) error
}

// Clearer empties the selected files after a successful batch.
type Clearer interface {
	Clear()
}

// State is a batch lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateUploading  State = "uploading"
	StateNotifying  State = "notifying"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Running reports whether s is an in-flight state.
func (s State) Running() bool {
	return s == StateValidating || s == StateUploading || s == StateNotifying
}

// Orchestrator drives batches one at a time.
type Orchestrator struct {
	uploader            Uploader
	notifier            Notifier
	clearer             Clearer
	requiresAssociation bool
	bus                 *events.EventBus
	logger              *logging.Logger
	onProgress          func(percent int)

	mu        sync.Mutex
	state     State
	fileIndex int
	batchID   string

	// progressMu serializes progress emission across the upload goroutine
	// and the uploader's callback goroutine.
	progressMu sync.Mutex
	progress   atomic.Int32
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithEventBus publishes batch events on bus.
func WithEventBus(bus *events.EventBus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithProgressFunc calls fn with each new aggregate percentage.
func WithProgressFunc(fn func(percent int)) Option {
	return func(o *Orchestrator) { o.onProgress = fn }
}

// WithSelectionClearer clears the selected files after success.
func WithSelectionClearer(c Clearer) Option {
	return func(o *Orchestrator) { o.clearer = c }
}

// WithRequiresAssociation rejects batches without a unit.
func WithRequiresAssociation(required bool) Option {
	return func(o *Orchestrator) { o.requiresAssociation = required }
}

// NewOrchestrator creates an idle orchestrator.
func NewOrchestrator(uploader Uploader, notifier Notifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		uploader: uploader,
		notifier: notifier,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.NewNopLogger()
	}
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// CurrentFile returns the index of the file being uploaded; only
// meaningful in StateUploading.
func (o *Orchestrator) CurrentFile() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fileIndex
}

// Progress returns the aggregate percentage of the current or last batch.
func (o *Orchestrator) Progress() int {
	return int(o.progress.Load())
}

// Run uploads every file of sel in order, then notifies. It blocks until the
// batch settles in StateSucceeded or StateFailed. Every failure comes back
// as an error: *ValidationError, *TransferError, *NotificationError, or
// *ConcurrencyError when a batch is already in flight. The result is nil
// only for *ConcurrencyError; on failure it carries no files.
func (o *Orchestrator) Run(ctx context.Context, sel models.Selection) (*models.BatchResult, error) {
	o.mu.Lock()
	if o.state.Running() {
		o.mu.Unlock()
		return nil, &ConcurrencyError{Reason: ReasonAlreadyRunning}
	}
	batchID := uuid.New().String()
	prev := o.state
	o.batchID = batchID
	o.state = StateValidating
	o.fileIndex = 0
	o.mu.Unlock()
	o.publishState(batchID, prev, StateValidating, 0, nil)

	log := o.logger.Child(o.logger.With().Str("batch", batchID))
	result := &models.BatchResult{BatchID: batchID}

	if err := o.validate(sel); err != nil {
		log.Warn().Str("reason", err.Reason).Msg("Batch rejected")
		o.fail(err)
		return result, err
	}

	start := time.Now()
	n := len(sel.Files)
	o.resetProgress()
	log.Info().Int("files", n).Msg("Starting upload batch")

	uploaded := make([]models.UploadedFile, 0, n)
	for i, file := range sel.Files {
		o.setState(StateUploading, i, nil)
		o.emitProgress(batchProgress(i, n, 0))

		res, err := o.uploadOne(ctx, i, n, file, sel.Unit)
		if err != nil {
			log.Error().Err(err).Int("file", i).Str("name", file.Name).Msg("File upload failed")
			terr := &TransferError{FileIndex: i, FileName: file.Name, Cause: err}
			o.fail(terr)
			return result, terr
		}

		uploaded = append(uploaded, res)
		o.emitProgress(completedProgress(i, n))
		o.publish(&events.FileCompletedEvent{
			BaseEvent: events.NewBase(events.EventFileCompleted),
			BatchID:   batchID,
			FileIndex: i,
			Name:      res.Name,
			Link:      res.Link,
		})
		log.Debug().Int("file", i).Str("name", res.Name).Msg("File uploaded")
	}

	o.setState(StateNotifying, n-1, nil)
	if err := o.notifier.NotifyBatchComplete(ctx, constants.BatchSuccessMessage, uploaded); err != nil {
		// Files are already stored remotely; the batch still counts as failed
		log.Error().Err(err).Msg("Completion notification failed")
		nerr := &NotificationError{Cause: err}
		o.fail(nerr)
		return result, nerr
	}

	result.Files = uploaded
	result.Succeeded = true

	o.setState(StateSucceeded, n-1, nil)
	o.progressMu.Lock()
	o.progress.Store(0)
	o.progressMu.Unlock()
	if o.clearer != nil {
		o.clearer.Clear()
	}

	elapsed := time.Since(start)
	o.publish(&events.BatchCompletedEvent{
		BaseEvent: events.NewBase(events.EventBatchCompleted),
		BatchID:   batchID,
		Files:     n,
		Duration:  elapsed,
	})
	log.Info().Int("files", n).Dur("elapsed", elapsed).Msg("Upload batch complete")

	return result, nil
}

func (o *Orchestrator) validate(sel models.Selection) *ValidationError {
	if len(sel.Files) == 0 {
		return &ValidationError{Reason: ReasonNoFiles}
	}
	if o.requiresAssociation && sel.Unit == nil {
		return &ValidationError{Reason: ReasonNoAssociation}
	}
	return nil
}

// uploadOne runs one transfer. Callbacks arriving after Upload returns are ignored.
func (o *Orchestrator) uploadOne(ctx context.Context, i, n int, file models.LocalFile, unit *models.Unit) (models.UploadedFile, error) {
	var active atomic.Bool
	active.Store(true)
	defer active.Store(false)

	var lastPct atomic.Int32
	lastPct.Store(-1)

	onBytes := func(done, total int64) {
		if !active.Load() {
			return
		}
		f := fraction(done, total)
		o.emitProgress(batchProgress(i, n, f))

		// File events only on whole-percent changes
		pct := int32(f * 100)
		if lastPct.Swap(pct) != pct {
			o.publish(&events.FileProgressEvent{
				BaseEvent:    events.NewBase(events.EventFileProgress),
				BatchID:      o.currentBatchID(),
				FileIndex:    i,
				TotalFiles:   n,
				Name:         file.Name,
				Fraction:     f,
				BytesCurrent: done,
				BytesTotal:   total,
			})
		}
	}

	return o.uploader.Upload(ctx, file, unit, onBytes)
}

// resetProgress starts a new batch at 0 and publishes it.
func (o *Orchestrator) resetProgress() {
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	o.progress.Store(0)
	o.deliverProgress(0)
}

// emitProgress publishes pct if it moves the batch forward. Values never decrease.
func (o *Orchestrator) emitProgress(pct int) {
	o.progressMu.Lock()
	defer o.progressMu.Unlock()

	if pct <= int(o.progress.Load()) {
		return
	}
	o.progress.Store(int32(pct))
	o.deliverProgress(pct)
}

// deliverProgress must be called with progressMu held.
func (o *Orchestrator) deliverProgress(pct int) {
	if o.onProgress != nil {
		o.onProgress(pct)
	}
	o.publish(&events.BatchProgressEvent{
		BaseEvent: events.NewBase(events.EventBatchProgress),
		BatchID:   o.currentBatchID(),
		Progress:  pct,
	})
}

func (o *Orchestrator) fail(err error) {
	o.setState(StateFailed, o.CurrentFile(), err)
	o.publish(&events.BatchFailedEvent{
		BaseEvent: events.NewBase(events.EventBatchFailed),
		BatchID:   o.currentBatchID(),
		Error:     err,
	})
}

func (o *Orchestrator) setState(s State, fileIndex int, err error) {
	o.mu.Lock()
	old := o.state
	o.state = s
	o.fileIndex = fileIndex
	batchID := o.batchID
	o.mu.Unlock()

	o.publishState(batchID, old, s, fileIndex, err)
}

func (o *Orchestrator) publishState(batchID string, old, s State, fileIndex int, err error) {
	o.publish(&events.BatchStateEvent{
		BaseEvent: events.NewBase(events.EventBatchStateChanged),
		BatchID:   batchID,
		OldState:  string(old),
		NewState:  string(s),
		FileIndex: fileIndex,
		Error:     err,
	})
}

func (o *Orchestrator) currentBatchID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.batchID
}

func (o *Orchestrator) publish(e events.Event) {
	if o.bus != nil {
		o.bus.Publish(e)
	}
}
