package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/indextec/unit-uploader/internal/constants"
	"github.com/indextec/unit-uploader/internal/events"
)

// Spinner shows an indeterminate indicator while unit pages load.
type Spinner struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
	out io.Writer
}

// NewSpinner creates a spinner on out. Nothing is drawn on a non-terminal.
func NewSpinner(out io.Writer) *Spinner {
	return &Spinner{out: out}
}

// Start begins spinning with description.
func (s *Spinner) Start(description string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bar != nil {
		s.bar.Describe(description)
		return
	}
	s.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(s.out),
		progressbar.OptionSetVisibility(isTerminal(s.out)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(constants.SpinnerThrottle),
		progressbar.OptionClearOnFinish(),
	)
}

// Describe changes the description if the spinner is running.
func (s *Spinner) Describe(description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bar != nil {
		s.bar.Describe(description)
		_ = s.bar.Add(1)
	}
}

// Stop clears the spinner.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bar != nil {
		_ = s.bar.Finish()
		s.bar = nil
	}
}

// Consume drives the spinner from units events until ch is closed.
func (s *Spinner) Consume(ch <-chan events.Event) {
	for e := range ch {
		switch ev := e.(type) {
		case *events.UnitsLoadingEvent:
			if ev.Loading {
				s.Start(fmt.Sprintf("Loading units (page %d)...", ev.Page))
			}
		case *events.UnitsChangedEvent:
			s.Describe(fmt.Sprintf("Loaded %d units", ev.Count))
		case *events.UnitsErrorEvent:
			s.Stop()
		}
	}
	s.Stop()
}
