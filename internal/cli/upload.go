package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/indextec/unit-uploader/internal/api"
	"github.com/indextec/unit-uploader/internal/config"
	"github.com/indextec/unit-uploader/internal/constants"
	"github.com/indextec/unit-uploader/internal/events"
	"github.com/indextec/unit-uploader/internal/logging"
	"github.com/indextec/unit-uploader/internal/models"
	"github.com/indextec/unit-uploader/internal/progress"
	"github.com/indextec/unit-uploader/internal/state"
	"github.com/indextec/unit-uploader/internal/units"
	"github.com/indextec/unit-uploader/internal/upload"
)

type uploadOptions struct {
	unitID      string
	pick        bool
	requireUnit bool
}

// newUploadCmd creates the 'upload' command.
func newUploadCmd() *cobra.Command {
	var opts uploadOptions

	cmd := &cobra.Command{
		Use:   "upload <file> [file...]",
		Short: "Upload files in order and notify the completion webhook",
		Long: `Upload one or more files, one at a time, in the order given.

Each file is tagged with the selected unit. After every file succeeded the
completion webhook receives the name and link of each uploaded file. If any
file fails, the remaining files are not uploaded and the webhook is not called.

Examples:
  unit-uploader upload report.pdf photo.jpg --unit 12
  unit-uploader upload "*.pdf" --pick
  unit-uploader upload scan.tiff --backend s3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.unitID != "" && opts.pick {
				return fmt.Errorf("--unit and --pick are mutually exclusive")
			}
			return executeUpload(GetContext(), cmd, args, opts, GetLogger())
		},
	}

	cmd.Flags().StringVarP(&opts.unitID, "unit", "u", "", "Tag the upload with the unit with this id")
	cmd.Flags().BoolVarP(&opts.pick, "pick", "p", false, "Choose the unit interactively")
	cmd.Flags().BoolVar(&opts.requireUnit, "require-unit", false, "Refuse to upload without a unit (overrides config)")

	return cmd
}

func executeUpload(ctx context.Context, cmd *cobra.Command, patterns []string, opts uploadOptions, logger *logging.Logger) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.requireUnit {
		cfg.RequiresAssociation = true
	}
	if err := cfg.ValidateForUpload(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	paths, err := expandGlobPatterns(patterns)
	if err != nil {
		return err
	}

	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	defer bus.Close()

	selection := state.NewSelection(bus)
	for _, p := range paths {
		file, err := models.NewLocalFile(p)
		if err != nil {
			return err
		}
		selection.Add(file)
	}

	if opts.unitID != "" || opts.pick {
		unit, err := resolveUnit(ctx, cfg, opts, bus, logger, errOut)
		if err != nil {
			return err
		}
		selection.SetAssociation(unit)
	}

	uploader, err := newUploader(ctx, cfg, logger)
	if err != nil {
		return err
	}
	notifier, err := api.NewWebhookClient(cfg, logger)
	if err != nil {
		return err
	}

	orch := upload.NewOrchestrator(uploader, notifier,
		upload.WithEventBus(bus),
		upload.WithLogger(logger),
		upload.WithSelectionClearer(selection),
		upload.WithRequiresAssociation(cfg.RequiresAssociation),
	)

	snap := selection.Snapshot()
	if snap.Unit != nil {
		fmt.Fprintf(errOut, "Uploading %d file(s) for unit %s\n\n", len(snap.Files), snap.Unit.Label())
	} else {
		fmt.Fprintf(errOut, "Uploading %d file(s)\n\n", len(snap.Files))
	}

	result, err := runWithUI(ctx, orch, bus, snap, logger, errOut)
	if err != nil {
		reportFailure(errOut, err)
		return err
	}

	fmt.Fprintln(out)
	printSuccess(out, "%s", constants.BatchSuccessMessage)
	table := newTable(out, "#", "Name", "Link")
	for i, f := range result.Files {
		table.Append([]string{fmt.Sprintf("%d", i+1), f.Name, f.Link})
	}
	table.Render()
	return nil
}

// runWithUI runs the batch while the progress UI renders its events.
// Logs are routed above the bars while they are drawn.
func runWithUI(ctx context.Context, orch *upload.Orchestrator, bus *events.EventBus, sel models.Selection, logger *logging.Logger, errOut io.Writer) (*models.BatchResult, error) {
	ui := progress.NewBatchUI(errOut, len(sel.Files))
	if ui.IsTerminal() {
		prev := logger.Output()
		logger.SetOutput(ui.Writer())
		defer logger.SetOutput(prev)
	}

	ch := bus.SubscribeAll()
	done := make(chan struct{})
	go func() {
		ui.Consume(ch)
		close(done)
	}()

	result, err := orch.Run(ctx, sel)

	bus.UnsubscribeAll(ch)
	<-done
	ui.Finish(err)

	return result, err
}

// resolveUnit finds the unit for --unit or asks for one with --pick.
func resolveUnit(ctx context.Context, cfg *config.Config, opts uploadOptions, bus *events.EventBus, logger *logging.Logger, errOut io.Writer) (*models.Unit, error) {
	loader, err := newUnitLoader(cfg, bus, logger)
	if err != nil {
		return nil, err
	}

	if opts.pick {
		return pickUnit(ctx, loader, os.Stdin, errOut)
	}

	spinner := progress.NewSpinner(errOut)
	spinner.Start("Looking up unit " + opts.unitID + "...")
	defer spinner.Stop()

	for {
		if unit, ok := loader.Lookup(opts.unitID); ok {
			return &unit, nil
		}
		if loader.Exhausted() {
			return nil, fmt.Errorf("unit %s not found in listing", opts.unitID)
		}
		loader.FetchNextPage(ctx)
		if err := loader.LastError(); err != nil {
			return nil, fmt.Errorf("failed to load units: %w", err)
		}
	}
}

func newUnitLoader(cfg *config.Config, bus *events.EventBus, logger *logging.Logger) (*units.Loader, error) {
	if err := cfg.ValidateForListing(); err != nil {
		return nil, err
	}
	client, err := api.NewListingClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	return units.NewLoader(client, cfg.PageSize, bus, logger), nil
}

// reportFailure prints one generic line plus the cause.
func reportFailure(w io.Writer, err error) {
	var (
		verr *upload.ValidationError
		terr *upload.TransferError
		nerr *upload.NotificationError
		cerr *upload.ConcurrencyError
	)

	fmt.Fprintln(w)
	switch {
	case errors.As(err, &verr):
		switch verr.Reason {
		case upload.ReasonNoFiles:
			printFailure(w, "No files selected.")
		case upload.ReasonNoAssociation:
			printFailure(w, "A unit must be selected before uploading.")
			printHint(w, "Use --unit <id> or --pick.")
		default:
			printFailure(w, "Upload rejected: %s", verr.Reason)
		}
	case errors.As(err, &terr):
		printFailure(w, "Upload failed.")
		fmt.Fprintf(w, "  %v\n", terr)
		printHint(w, "Files after %s were not uploaded; the webhook was not called.", terr.FileName)
	case errors.As(err, &nerr):
		printFailure(w, "Upload failed.")
		fmt.Fprintf(w, "  %v\n", nerr)
		printHint(w, "All files were stored, but the completion webhook did not accept the batch.")
	case errors.As(err, &cerr):
		printFailure(w, "An upload is already running.")
	default:
		printFailure(w, "Upload failed.")
		fmt.Fprintf(w, "  %v\n", err)
	}
}
