package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"github.com/indextec/unit-uploader/internal/api"
	"github.com/indextec/unit-uploader/internal/config"
	"github.com/indextec/unit-uploader/internal/constants"
	inthttp "github.com/indextec/unit-uploader/internal/http"
	"github.com/indextec/unit-uploader/internal/logging"
	"github.com/indextec/unit-uploader/internal/pathutil"
	"github.com/indextec/unit-uploader/internal/storage/azure"
	"github.com/indextec/unit-uploader/internal/storage/s3"
	"github.com/indextec/unit-uploader/internal/upload"
)

// loadConfig resolves settings from the config file, environment and global flags.
// Priority: flags > environment > config file > defaults
func loadConfig() (*config.Config, error) {
	configPath := configFilePath()

	cfg, err := config.LoadConfigCSV(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.MergeWithFlags(config.Flags{
		UploadEndpoint:   uploadURL,
		WebhookEndpoint:  webhookURL,
		ListingEndpoint:  listingURL,
		UploadTokenFile:  uploadTokenFile,
		ListingTokenFile: listingTokenFile,
		Backend:          backend,
	}); err != nil {
		return nil, err
	}

	if inthttp.NeedsProxyPassword(cfg) {
		password, err := promptProxyPassword(cfg.ProxyUser)
		if err != nil {
			return nil, fmt.Errorf("failed to read proxy password: %w", err)
		}
		cfg.ProxyPassword = password
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configFilePath returns the absolute path of --config or the default config file.
func configFilePath() string {
	path := cfgFile
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	if resolved, err := pathutil.ResolveAbsolutePath(path); err == nil {
		return resolved
	}
	return path
}

// newUploader builds the transfer backend selected by cfg.Backend.
func newUploader(ctx context.Context, cfg *config.Config, logger *logging.Logger) (upload.Uploader, error) {
	var (
		u   upload.Uploader
		err error
	)
	switch cfg.Backend {
	case constants.BackendS3:
		u, err = s3.NewUploader(ctx, cfg, logger)
	case constants.BackendAzure:
		u, err = azure.NewUploader(cfg, logger)
	case constants.BackendHTTP, "":
		u, err = api.NewFileUploader(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s uploader: %w", cfg.Backend, err)
	}
	return u, nil
}

// expandGlobPatterns expands "~" and glob patterns like *.pdf, even when quoted.
// Order follows the arguments; repeated paths are kept since the same file
// may be selected more than once.
func expandGlobPatterns(patterns []string) ([]string, error) {
	var expanded []string

	for _, pattern := range patterns {
		pattern, err := pathutil.ExpandHome(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to expand %s: %w", pattern, err)
		}

		if !strings.ContainsAny(pattern, "*?[]") {
			absPath, err := filepath.Abs(pattern)
			if err != nil {
				return nil, fmt.Errorf("failed to get absolute path for %s: %w", pattern, err)
			}
			expanded = append(expanded, absPath)
			continue
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match pattern: %s", pattern)
		}
		for _, match := range matches {
			absPath, err := filepath.Abs(match)
			if err != nil {
				return nil, fmt.Errorf("failed to get absolute path for %s: %w", match, err)
			}
			expanded = append(expanded, absPath)
		}
	}

	return expanded, nil
}

// newTable returns a borderless, left-aligned table writer.
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

func printSuccess(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, color.Green.Sprintf("✓ "+format, args...))
}

func printFailure(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, color.Red.Sprintf("✗ "+format, args...))
}

func printHint(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, color.Yellow.Sprintf(format, args...))
}
