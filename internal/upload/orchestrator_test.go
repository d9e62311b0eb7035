package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indextec/unit-uploader/internal/api"
	"github.com/indextec/unit-uploader/internal/constants"
	"github.com/indextec/unit-uploader/internal/events"
	"github.com/indextec/unit-uploader/internal/models"
	"github.com/indextec/unit-uploader/internal/state"
)

// fakeUploader reports progress in chunks and fails on chosen indexes.
type fakeUploader struct {
	mu      sync.Mutex
	calls   []models.LocalFile
	units   []*models.Unit
	failAt  map[int]error
	chunks  int
	block   chan struct{}
	started chan struct{}
}

func (f *fakeUploader) Upload(ctx context.Context, file models.LocalFile, unit *models.Unit, onProgress func(done, total int64)) (models.UploadedFile, error) {
	f.mu.Lock()
	idx := len(f.calls)
	f.calls = append(f.calls, file)
	f.units = append(f.units, unit)
	block, started := f.block, f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}

	chunks := f.chunks
	if chunks == 0 {
		chunks = 4
	}
	for c := 1; c <= chunks; c++ {
		onProgress(file.Size*int64(c)/int64(chunks), file.Size)
	}

	if err := f.failAt[idx]; err != nil {
		return models.UploadedFile{}, err
	}
	return models.UploadedFile{Name: file.Name, Link: "https://files.example.com/" + file.Name}, nil
}

func (f *fakeUploader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeNotifier struct {
	calls   int
	message string
	files   []models.UploadedFile
	err     error
}

func (f *fakeNotifier) NotifyBatchComplete(ctx context.Context, message string, files []models.UploadedFile) error {
	f.calls++
	f.message = message
	f.files = files
	return f.err
}

type progressRecorder struct {
	mu     sync.Mutex
	values []int
}

func (p *progressRecorder) record(v int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, v)
}

func (p *progressRecorder) snapshot() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.values...)
}

func files(sizes ...int64) []models.LocalFile {
	out := make([]models.LocalFile, len(sizes))
	for i, size := range sizes {
		name := fmt.Sprintf("file-%d.bin", i)
		out[i] = models.LocalFile{Name: name, Path: "/tmp/" + name, Size: size}
	}
	return out
}

func assertNonDecreasing(t *testing.T, values []int) {
	t.Helper()
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i], values[i-1], "progress decreased at %d: %v", i, values)
	}
}

func TestRun_ThreeFilesSucceed(t *testing.T) {
	sel := state.NewSelection(nil)
	sel.Add(files(10*1024, 20*1024, 5*1024)...)
	unit := &models.Unit{ID: "7", DisplayName: "Sul"}
	sel.SetAssociation(unit)

	uploader := &fakeUploader{}
	notifier := &fakeNotifier{}
	rec := &progressRecorder{}
	orch := NewOrchestrator(uploader, notifier,
		WithSelectionClearer(sel),
		WithRequiresAssociation(true),
		WithProgressFunc(rec.record),
	)

	result, err := orch.Run(context.Background(), sel.Snapshot())
	require.NoError(t, err)

	assert.True(t, result.Succeeded)
	require.Len(t, result.Files, 3)
	assert.Equal(t, []string{"file-0.bin", "file-1.bin", "file-2.bin"},
		[]string{result.Files[0].Name, result.Files[1].Name, result.Files[2].Name})

	values := rec.snapshot()
	require.NotEmpty(t, values)
	assert.Equal(t, 0, values[0])
	assert.Equal(t, 100, values[len(values)-1])
	assertNonDecreasing(t, values)
	assert.Contains(t, values, 33)
	assert.Contains(t, values, 67)

	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, constants.BatchSuccessMessage, notifier.message)
	assert.Equal(t, result.Files, notifier.files)

	for _, u := range uploader.units {
		assert.Equal(t, unit, u)
	}

	assert.Empty(t, sel.Files(), "files are cleared after success")
	assert.Equal(t, unit, sel.Association(), "association is preserved")
	assert.Equal(t, StateSucceeded, orch.State())
	assert.Equal(t, 0, orch.Progress(), "progress resets after success")
}

func TestRun_ProgressMonotonicForManySizes(t *testing.T) {
	for n := 1; n <= 7; n++ {
		t.Run(fmt.Sprintf("%d files", n), func(t *testing.T) {
			sizes := make([]int64, n)
			for i := range sizes {
				sizes[i] = int64((i*7919)%5000 + 1)
			}
			rec := &progressRecorder{}
			orch := NewOrchestrator(&fakeUploader{chunks: 13}, &fakeNotifier{}, WithProgressFunc(rec.record))

			_, err := orch.Run(context.Background(), models.Selection{Files: files(sizes...)})
			require.NoError(t, err)

			values := rec.snapshot()
			assertNonDecreasing(t, values)
			assert.GreaterOrEqual(t, values[0], 0)
			assert.Equal(t, 100, values[len(values)-1])
		})
	}
}

func TestRun_FailureStopsRemainingFiles(t *testing.T) {
	for n := 1; n <= 4; n++ {
		for k := 0; k < n; k++ {
			t.Run(fmt.Sprintf("n=%d k=%d", n, k), func(t *testing.T) {
				cause := errors.New("boom")
				uploader := &fakeUploader{failAt: map[int]error{k: cause}}
				notifier := &fakeNotifier{}
				orch := NewOrchestrator(uploader, notifier)

				result, err := orch.Run(context.Background(), models.Selection{Files: files(make([]int64, n)...)})

				var terr *TransferError
				require.ErrorAs(t, err, &terr)
				assert.Equal(t, k, terr.FileIndex)
				assert.ErrorIs(t, err, cause)
				assert.Equal(t, k+1, uploader.callCount(), "no request after the failing file")
				assert.Zero(t, notifier.calls)
				assert.False(t, result.Succeeded)
				assert.Empty(t, result.Files)
				assert.Equal(t, StateFailed, orch.State())
			})
		}
	}
}

func TestRun_SecondFileHTTPErrorKeepsSelection(t *testing.T) {
	sel := state.NewSelection(nil)
	sel.Add(files(100, 200)...)

	uploader := &fakeUploader{failAt: map[int]error{1: &api.StatusError{StatusCode: 500, Body: "internal"}}}
	orch := NewOrchestrator(uploader, &fakeNotifier{}, WithSelectionClearer(sel))

	result, err := orch.Run(context.Background(), sel.Snapshot())

	var terr *TransferError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 1, terr.FileIndex)
	assert.True(t, api.IsStatus(err, 500))
	assert.Empty(t, result.Files)
	assert.Len(t, sel.Files(), 2, "selection is only cleared on success")
}

func TestRun_ZeroFiles(t *testing.T) {
	uploader := &fakeUploader{}
	notifier := &fakeNotifier{}
	orch := NewOrchestrator(uploader, notifier)

	_, err := orch.Run(context.Background(), models.Selection{})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonNoFiles, verr.Reason)
	assert.Zero(t, uploader.callCount())
	assert.Zero(t, notifier.calls)
	assert.Equal(t, StateFailed, orch.State())
}

func TestRun_NoAssociation(t *testing.T) {
	uploader := &fakeUploader{}
	orch := NewOrchestrator(uploader, &fakeNotifier{}, WithRequiresAssociation(true))

	_, err := orch.Run(context.Background(), models.Selection{Files: files(1)})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonNoAssociation, verr.Reason)
	assert.Zero(t, uploader.callCount())

	// Not required: the same selection uploads
	orch = NewOrchestrator(uploader, &fakeNotifier{})
	_, err = orch.Run(context.Background(), models.Selection{Files: files(1)})
	assert.NoError(t, err)
	assert.Nil(t, uploader.units[0])
}

func TestRun_NotificationFailureFailsBatch(t *testing.T) {
	sel := state.NewSelection(nil)
	sel.Add(files(10, 20)...)
	uploader := &fakeUploader{}
	orch := NewOrchestrator(uploader, &fakeNotifier{err: errors.New("webhook down")}, WithSelectionClearer(sel))

	result, err := orch.Run(context.Background(), sel.Snapshot())

	var nerr *NotificationError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, 2, uploader.callCount())
	assert.False(t, result.Succeeded)
	assert.Empty(t, result.Files)
	assert.Len(t, sel.Files(), 2)
	assert.Equal(t, StateFailed, orch.State())
}

func TestRun_AlreadyRunning(t *testing.T) {
	uploader := &fakeUploader{block: make(chan struct{}), started: make(chan struct{}, 1)}
	orch := NewOrchestrator(uploader, &fakeNotifier{})

	done := make(chan error, 1)
	go func() {
		_, err := orch.Run(context.Background(), models.Selection{Files: files(10, 10)})
		done <- err
	}()

	select {
	case <-uploader.started:
	case <-time.After(time.Second):
		t.Fatal("first upload never started")
	}

	stateBefore, fileBefore, progressBefore := orch.State(), orch.CurrentFile(), orch.Progress()

	result, err := orch.Run(context.Background(), models.Selection{Files: files(1)})
	assert.Nil(t, result)
	var cerr *ConcurrencyError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ReasonAlreadyRunning, cerr.Reason)

	assert.Equal(t, stateBefore, orch.State())
	assert.Equal(t, fileBefore, orch.CurrentFile())
	assert.Equal(t, progressBefore, orch.Progress())
	assert.Equal(t, StateUploading, orch.State())

	close(uploader.block)
	go func() {
		for range uploader.started {
		}
	}()
	require.NoError(t, <-done)
	assert.Equal(t, 2, uploader.callCount())

	// Settled batches accept a new run
	_, err = orch.Run(context.Background(), models.Selection{Files: files(1)})
	assert.NoError(t, err)
}

func TestRun_ResetsProgressForNextBatch(t *testing.T) {
	rec := &progressRecorder{}
	uploader := &fakeUploader{failAt: map[int]error{1: errors.New("x")}}
	orch := NewOrchestrator(uploader, &fakeNotifier{}, WithProgressFunc(rec.record))

	_, err := orch.Run(context.Background(), models.Selection{Files: files(10, 10)})
	require.Error(t, err)
	reached := orch.Progress()
	assert.Greater(t, reached, 0, "failed batch keeps the progress it reached")

	// Call indexes 2 and 3 do not fail
	before := len(rec.snapshot())
	_, err = orch.Run(context.Background(), models.Selection{Files: files(10, 10)})
	require.NoError(t, err)

	second := rec.snapshot()[before:]
	require.NotEmpty(t, second)
	assert.Equal(t, 0, second[0], "new batch starts from 0")
	assert.Equal(t, 100, second[len(second)-1])
	assertNonDecreasing(t, second)
}

func TestRun_PublishesEvents(t *testing.T) {
	bus := events.NewEventBus(100)
	defer bus.Close()
	all := bus.SubscribeAll()

	orch := NewOrchestrator(&fakeUploader{}, &fakeNotifier{}, WithEventBus(bus))
	result, err := orch.Run(context.Background(), models.Selection{Files: files(10, 20)})
	require.NoError(t, err)

	var states []string
	var completed *events.BatchCompletedEvent
	fileDone := 0
	timeout := time.After(time.Second)
	for completed == nil {
		select {
		case e := <-all:
			switch ev := e.(type) {
			case *events.BatchStateEvent:
				states = append(states, ev.NewState)
				assert.Equal(t, result.BatchID, ev.BatchID)
			case *events.FileCompletedEvent:
				fileDone++
			case *events.BatchCompletedEvent:
				completed = ev
			}
		case <-timeout:
			t.Fatal("batch_completed not received")
		}
	}

	assert.Equal(t, []string{"validating", "uploading", "uploading", "notifying", "succeeded"}, states)
	assert.Equal(t, 2, fileDone)
	assert.Equal(t, 2, completed.Files)
}

func TestBatchProgressFormula(t *testing.T) {
	assert.Equal(t, 0, batchProgress(0, 3, 0))
	assert.Equal(t, 33, batchProgress(1, 3, 0))
	assert.Equal(t, 50, batchProgress(1, 3, 0.5))
	assert.Equal(t, 100, batchProgress(2, 3, 1))
	assert.Equal(t, 67, completedProgress(1, 3))
	assert.Equal(t, 100, completedProgress(2, 3))
	assert.Equal(t, 100, batchProgress(0, 1, 2), "fraction is clamped")
	assert.Equal(t, 0.0, fraction(5, 0))
}
