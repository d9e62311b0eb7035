package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/indextec/unit-uploader/internal/constants"
	"github.com/indextec/unit-uploader/internal/events"
	"github.com/indextec/unit-uploader/internal/logging"
	"github.com/indextec/unit-uploader/internal/progress"
	"github.com/indextec/unit-uploader/internal/units"
	"github.com/indextec/unit-uploader/internal/util/sanitize"
)

// newUnitsCmd creates the 'units' command group.
func newUnitsCmd() *cobra.Command {
	unitsCmd := &cobra.Command{
		Use:   "units",
		Short: "Browse the remote unit listing",
	}
	unitsCmd.AddCommand(newUnitsListCmd())
	return unitsCmd
}

func newUnitsListCmd() *cobra.Command {
	var (
		search string
		pages  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List units ordered by id",
		Long: `List units from the listing endpoint, ordered by numeric id.

Pages are requested until a short page is returned, or until --pages pages
were loaded. Units loaded more than once are shown once.

Examples:
  unit-uploader units list
  unit-uploader units list --search norte
  unit-uploader units list --pages 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pages < 0 {
				return fmt.Errorf("--pages must be 0 (all) or greater, got %d", pages)
			}
			logger := GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			bus := events.NewEventBus(constants.EventBusDefaultBuffer)
			defer bus.Close()

			loader, err := newUnitLoader(cfg, bus, logger)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			spinner := progress.NewSpinner(cmd.ErrOrStderr())
			ch := bus.SubscribeAll()
			done := make(chan struct{})
			go func() {
				spinner.Consume(ch)
				close(done)
			}()

			loadErr := loadPages(GetContext(), loader, pages, logger)

			bus.UnsubscribeAll(ch)
			<-done

			if loadErr != nil {
				printFailure(cmd.ErrOrStderr(), "Failed to load units: %v", loadErr)
				if len(loader.Units()) == 0 {
					return loadErr
				}
			}

			printUnits(cmd.OutOrStdout(), loader, search)
			return nil
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Only show units whose label contains this text")
	cmd.Flags().IntVar(&pages, "pages", 0, "Maximum pages to load (0 = all)")

	return cmd
}

// loadPages fetches up to limit pages; limit 0 loads everything.
func loadPages(ctx context.Context, loader *units.Loader, limit int, logger *logging.Logger) error {
	if limit == 0 {
		return loader.LoadAll(ctx)
	}
	for i := 0; i < limit && !loader.Exhausted(); i++ {
		loader.FetchNextPage(ctx)
		if err := loader.LastError(); err != nil {
			return err
		}
	}
	logger.Debug().Int("pages", limit).Bool("exhausted", loader.Exhausted()).Msg("Stopped at page limit")
	return nil
}

func printUnits(w io.Writer, loader *units.Loader, search string) {
	options := loader.Search(search)
	table := newTable(w, "ID", "Label")
	for _, opt := range options {
		table.Append([]string{opt.Key, sanitize.Label(opt.Label)})
	}
	table.Render()

	suffix := ""
	if !loader.Exhausted() {
		suffix = " (more available)"
	}
	fmt.Fprintf(w, "\n%d of %d loaded unit(s)%s\n", len(options), len(loader.Units()), suffix)
}
