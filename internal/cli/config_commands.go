package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/indextec/unit-uploader/internal/api"
	"github.com/indextec/unit-uploader/internal/config"
	"github.com/indextec/unit-uploader/internal/constants"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage unit-uploader configuration",
		Long: `Configuration management commands for unit-uploader.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Test the unit listing endpoint
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for unit-uploader.

The configuration is saved to ./config.csv if it exists, otherwise to
~/.config/unit-uploader/config.csv. Tokens are never written to this file:
pass them with --upload-token-file / --listing-token-file or the
UPLOADER_UPLOAD_TOKEN / UPLOADER_LISTING_TOKEN environment variables.

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := configFilePath()

			out := cmd.OutOrStdout()
			if !force {
				if _, err := os.Stat(configPath); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", configPath)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			cfg, err := promptConfig(cmd.InOrStdin(), out)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := config.SaveConfigCSV(cfg, configPath); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			GetLogger().Info().Str("path", configPath).Msg("Configuration saved")

			fmt.Fprintln(out)
			printSuccess(out, "Configuration saved to: %s", configPath)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Tokens are not stored in the configuration file. Provide them with:")
			fmt.Fprintln(out, "  unit-uploader --upload-token-file <path> --listing-token-file <path> <command>")
			fmt.Fprintf(out, "  or export %s_UPLOAD_TOKEN / %s_LISTING_TOKEN\n", config.EnvPrefix, config.EnvPrefix)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Test your configuration with: unit-uploader config test")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// promptConfig asks for the main settings; Enter keeps the default.
func promptConfig(in io.Reader, out io.Writer) (*config.Config, error) {
	reader := bufio.NewReader(in)
	cfg := config.Default()

	ask := func(label, def string) string {
		if def != "" {
			fmt.Fprintf(out, "%s [%s]: ", label, def)
		} else {
			fmt.Fprintf(out, "%s: ", label)
		}
		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "" {
			return def
		}
		return input
	}

	fmt.Fprintln(out, "unit-uploader Configuration Setup")
	fmt.Fprintln(out, "=================================")
	fmt.Fprintln(out)

	cfg.Backend = strings.ToLower(ask("Backend (http, s3, azure)", cfg.Backend))
	switch cfg.Backend {
	case constants.BackendS3:
		cfg.S3Bucket = ask("S3 bucket", "")
		cfg.S3Region = ask("S3 region", "us-east-1")
		cfg.S3Prefix = ask("S3 key prefix", "")
		cfg.S3Endpoint = ask("S3 custom endpoint (blank for AWS)", "")
	case constants.BackendAzure:
		cfg.AzureContainer = ask("Azure container", "")
		cfg.AzurePrefix = ask("Azure blob prefix", "")
	default:
		cfg.UploadEndpoint = ask("Upload endpoint URL", "")
		cfg.UploadFolderID = ask("Upload folder id (blank for none)", "")
	}

	cfg.WebhookEndpoint = ask("Completion webhook URL", "")
	cfg.ListingEndpoint = ask("Unit listing URL", "")
	if v, err := strconv.Atoi(ask("Listing page size", strconv.Itoa(cfg.PageSize))); err == nil && v > 0 {
		cfg.PageSize = v
	}

	required := strings.ToLower(ask("Require a unit for every upload? [y/N]", "n"))
	cfg.RequiresAssociation = required == "y" || required == "yes"

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Proxy modes: no-proxy, system, basic, ntlm")
	cfg.ProxyMode = ask("Proxy mode", cfg.ProxyMode)
	if cfg.ProxyMode == "basic" || cfg.ProxyMode == "ntlm" {
		cfg.ProxyHost = ask("Proxy host", "")
		cfg.ProxyPort = 8080
		if v, err := strconv.Atoi(ask("Proxy port", "8080")); err == nil && v > 0 {
			cfg.ProxyPort = v
		}
		cfg.ProxyUser = ask("Proxy user (blank for none)", "")
	}

	return cfg, nil
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the effective configuration merged from the config file,
UPLOADER_* environment variables and command-line flags. Secrets are masked.

Priority: flags > environment > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := configFilePath()

			cfg, err := config.LoadConfigCSV(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.ApplyEnv(); err != nil {
				return fmt.Errorf("failed to read environment: %w", err)
			}
			if err := cfg.MergeWithFlags(config.Flags{
				UploadEndpoint:   uploadURL,
				WebhookEndpoint:  webhookURL,
				ListingEndpoint:  listingURL,
				UploadTokenFile:  uploadTokenFile,
				ListingTokenFile: listingTokenFile,
				Backend:          backend,
			}); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			table := newTable(out, "Key", "Value")
			table.AppendBulk(cfg.Entries())
			table.Render()

			fmt.Fprintln(out)
			fmt.Fprintf(out, "Configuration file: %s\n", configPath)
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				fmt.Fprintln(out, "  (file does not exist - using defaults)")
			}
			if err := cfg.Validate(); err != nil {
				printHint(out, "Warning: %v", err)
			}
			return nil
		},
	}
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test the unit listing endpoint",
		Long:  `Request the first listing page with the current configuration and report the result.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateForListing(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return testListing(GetContext(), cfg, cmd.OutOrStdout())
		},
	}
}

func testListing(ctx context.Context, cfg *config.Config, out io.Writer) error {
	client, err := api.NewListingClient(cfg, GetLogger())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Testing listing endpoint %s...\n", cfg.ListingEndpoint)
	records, err := client.ListUnits(ctx, constants.FirstPage, cfg.PageSize)
	if err != nil {
		printFailure(out, "Listing request failed: %v", err)
		return err
	}
	printSuccess(out, "Listing endpoint answered with %d unit(s) on page %d", len(records), constants.FirstPage)
	return nil
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			configPath := configFilePath()
			fmt.Fprintln(cmd.OutOrStdout(), configPath)
		},
	}
}
