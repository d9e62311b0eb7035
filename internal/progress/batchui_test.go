package progress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/indextec/unit-uploader/internal/events"
)

func TestBatchUI_TextMode(t *testing.T) {
	var buf bytes.Buffer
	ui := NewBatchUI(&buf, 2)
	if ui.IsTerminal() {
		t.Fatal("bytes.Buffer must not be treated as a terminal")
	}

	ch := make(chan events.Event, 16)
	ch <- &events.BatchProgressEvent{BaseEvent: events.NewBase(events.EventBatchProgress), Progress: 0}
	ch <- &events.FileProgressEvent{BaseEvent: events.NewBase(events.EventFileProgress), FileIndex: 0, TotalFiles: 2, Name: "a.pdf", BytesCurrent: 5, BytesTotal: 10}
	ch <- &events.FileProgressEvent{BaseEvent: events.NewBase(events.EventFileProgress), FileIndex: 0, TotalFiles: 2, Name: "a.pdf", BytesCurrent: 10, BytesTotal: 10}
	ch <- &events.BatchProgressEvent{BaseEvent: events.NewBase(events.EventBatchProgress), Progress: 25}
	ch <- &events.BatchProgressEvent{BaseEvent: events.NewBase(events.EventBatchProgress), Progress: 27}
	ch <- &events.FileCompletedEvent{BaseEvent: events.NewBase(events.EventFileCompleted), FileIndex: 0, Name: "a.pdf", Link: "https://x/a"}
	close(ch)

	ui.Consume(ch)
	ui.Finish(nil)

	out := buf.String()
	for _, want := range []string{"Progress: 0%", "Progress: 20%", "Uploading [1/2]: a.pdf", "✓ [1/2] a.pdf → https://x/a"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "Uploading [1/2]") != 1 {
		t.Errorf("file start printed more than once:\n%s", out)
	}
	if strings.Count(out, "Progress: 20%") != 1 {
		t.Errorf("progress step printed more than once:\n%s", out)
	}
}

func TestTruncatePath(t *testing.T) {
	tests := []struct {
		path string
		n    int
		want string
	}{
		{"file.txt", 2, "file.txt"},
		{"dir/file.txt", 2, "file.txt"},
		{"/a/b/c/d/file.txt", 3, "…/c/d/file.txt"},
	}
	for _, tt := range tests {
		if got := truncatePath(tt.path, tt.n); got != tt.want {
			t.Errorf("truncatePath(%q, %d) = %q, want %q", tt.path, tt.n, got, tt.want)
		}
	}
}
