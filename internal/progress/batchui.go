// Package progress renders upload batches and unit loading on the terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/indextec/unit-uploader/internal/constants"
	"github.com/indextec/unit-uploader/internal/events"
)

// BatchUI draws an overall 0-100 bar plus one bar per file from batch events.
// On a non-terminal writer it prints one line per milestone instead.
type BatchUI struct {
	out        io.Writer
	progress   *mpb.Progress
	overall    *mpb.Bar
	isTerminal bool
	totalFiles int

	mu    sync.Mutex
	files map[int]*fileBar
	last  int // last overall percentage printed in text mode
}

type fileBar struct {
	bar        *mpb.Bar
	name       string
	size       int64
	startTime  time.Time
	lastUpdate time.Time
}

// NewBatchUI creates a UI for a batch of totalFiles files written to out.
func NewBatchUI(out io.Writer, totalFiles int) *BatchUI {
	u := &BatchUI{
		out:        out,
		totalFiles: totalFiles,
		files:      make(map[int]*fileBar),
		isTerminal: isTerminal(out),
		last:       -1,
	}

	if u.isTerminal {
		if f, ok := out.(*os.File); ok {
			enableANSIOnWindows(f)
		}
		u.progress = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(constants.ProgressRefreshRate),
			mpb.WithWidth(80),
		)
		u.overall = u.progress.New(100,
			mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
			mpb.PrependDecorators(
				decor.Name("Total", decor.WCSyncSpaceR),
				decor.Any(func(decor.Statistics) string {
					return fmt.Sprintf("(%d files)", totalFiles)
				}, decor.WCSyncSpace),
			),
			mpb.AppendDecorators(decor.Percentage(decor.WCSyncSpace)),
		)
	}
	return u
}

// Consume handles events from ch until it is closed.
func (u *BatchUI) Consume(ch <-chan events.Event) {
	for e := range ch {
		u.Handle(e)
	}
}

// Handle applies one batch event to the display.
func (u *BatchUI) Handle(e events.Event) {
	switch ev := e.(type) {
	case *events.BatchProgressEvent:
		u.setOverall(ev.Progress)
	case *events.FileProgressEvent:
		u.updateFile(ev)
	case *events.FileCompletedEvent:
		u.completeFile(ev)
	case *events.BatchStateEvent:
		if ev.NewState == "notifying" {
			u.println("Notifying completion webhook...")
		}
	}
}

// Finish settles every bar that is still open and waits for rendering to end.
// Bars are aborted in place when err is non-nil.
func (u *BatchUI) Finish(err error) {
	u.mu.Lock()
	for idx, fb := range u.files {
		if fb.bar != nil && !fb.bar.Completed() {
			if err != nil {
				fb.bar.Abort(false)
			} else {
				fb.bar.SetTotal(fb.size, true)
			}
		}
		delete(u.files, idx)
	}
	if u.overall != nil && !u.overall.Completed() {
		if err != nil {
			u.overall.Abort(false)
		} else {
			u.overall.SetCurrent(100)
		}
	}
	u.mu.Unlock()

	if u.progress != nil {
		u.progress.Wait()
	}
}

// Writer returns an io.Writer that prints above the bars while they render.
func (u *BatchUI) Writer() io.Writer {
	if u.progress != nil {
		return u.progress
	}
	return u.out
}

// IsTerminal reports whether bars are drawn.
func (u *BatchUI) IsTerminal() bool {
	return u.isTerminal
}

func (u *BatchUI) setOverall(pct int) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.overall != nil {
		u.overall.SetCurrent(int64(pct))
		return
	}
	// Text mode prints every 10%
	if step := pct / 10 * 10; step > u.last {
		u.last = step
		fmt.Fprintf(u.out, "Progress: %d%%\n", step)
	}
}

func (u *BatchUI) updateFile(ev *events.FileProgressEvent) {
	u.mu.Lock()
	defer u.mu.Unlock()

	fb, ok := u.files[ev.FileIndex]
	if !ok {
		fb = u.addFileBar(ev.FileIndex, ev.Name, ev.BytesTotal)
		u.files[ev.FileIndex] = fb
	}
	if fb.bar == nil {
		return
	}

	now := time.Now()
	fb.bar.EwmaSetCurrent(ev.BytesCurrent, now.Sub(fb.lastUpdate))
	fb.lastUpdate = now
}

// addFileBar must be called with mu held.
func (u *BatchUI) addFileBar(index int, name string, size int64) *fileBar {
	fb := &fileBar{
		name:       name,
		size:       size,
		startTime:  time.Now(),
		lastUpdate: time.Now(),
	}

	if !u.isTerminal {
		fmt.Fprintf(u.out, "Uploading [%d/%d]: %s (%.1f MiB)\n",
			index+1, u.totalFiles, truncatePath(name, 2), float64(size)/(1024*1024))
		return fb
	}

	label := fmt.Sprintf("[%d/%d] %s", index+1, u.totalFiles, truncatePath(name, 2))
	fb.bar = u.progress.New(size,
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(decor.Name(label, decor.WCSyncSpaceR)),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
			decor.Name("  "),
			decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 30, decor.WCSyncSpace),
		),
		mpb.BarRemoveOnComplete(),
	)
	return fb
}

func (u *BatchUI) completeFile(ev *events.FileCompletedEvent) {
	u.mu.Lock()
	fb, ok := u.files[ev.FileIndex]
	delete(u.files, ev.FileIndex)
	u.mu.Unlock()

	var elapsed time.Duration
	if ok {
		elapsed = time.Since(fb.startTime).Round(time.Millisecond)
		if fb.bar != nil {
			fb.bar.SetTotal(fb.size, true)
		}
	}
	u.println(fmt.Sprintf("✓ [%d/%d] %s → %s (%s)", ev.FileIndex+1, u.totalFiles, ev.Name, ev.Link, elapsed))
}

func (u *BatchUI) println(msg string) {
	fmt.Fprintln(u.Writer(), msg)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// truncatePath keeps only the last n components of path.
// Example: truncatePath("/a/b/c/d/file.txt", 3) → "…/c/d/file.txt"
func truncatePath(path string, n int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= n {
		return filepath.Base(path)
	}
	return "…/" + strings.Join(parts[len(parts)-n:], "/")
}

// enableANSIOnWindows turns on virtual terminal processing; no-op elsewhere.
func enableANSIOnWindows(f *os.File) {
	if runtime.GOOS == "windows" {
		enableWindowsANSI(f)
	}
}
