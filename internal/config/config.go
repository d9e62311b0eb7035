// Package config loads the uploader configuration from a CSV key/value file,
// the environment and command-line flags.
package config

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/indextec/unit-uploader/internal/constants"
	"github.com/indextec/unit-uploader/internal/util/sanitize"
)

// Config holds everything the core components need at construction time.
// Endpoints and tokens are never looked up by the core packages themselves.
type Config struct {
	// Upload target
	Backend        string `validate:"oneof=http s3 azure"`
	UploadEndpoint string `validate:"omitempty,url"`
	UploadToken    string // Bearer token for the upload endpoint (env/token file only)
	UploadFolderID string // Adds a Drive-style metadata part with parents=[folder] when set
	FileField      string `validate:"required"`
	UnitIDField    string `validate:"required"`
	UnitNameField  string `validate:"required"`

	// Completion webhook
	WebhookEndpoint string `validate:"omitempty,url"`

	// Unit listing
	ListingEndpoint     string `validate:"omitempty,url"`
	ListingToken        string // Bearer token for the listing endpoint (env/token file only)
	PageSize            int    `validate:"min=1,max=500"`
	PageParam           string `validate:"required"`
	PageSizeParam       string `validate:"required"`
	ListingResultsField string // Empty means the response body is a bare JSON array
	ListingIDField      string `validate:"required"`
	ListingNameField    string `validate:"required"`
	ListingMaxRetries   int    `validate:"min=0,max=10"`

	// RequiresAssociation rejects batches with no unit selected
	RequiresAssociation bool

	// S3 backend
	S3Bucket    string
	S3Region    string
	S3Prefix    string
	S3Endpoint  string `validate:"omitempty,url"` // Custom endpoint (MinIO, R2); enables path-style
	S3AccessKey string // env only; empty uses the default AWS credential chain
	S3SecretKey string // env only

	// Azure backend
	AzureSASURL    string `validate:"omitempty,url"` // Service URL with SAS token (env only)
	AzureContainer string
	AzurePrefix    string

	// Proxy settings
	ProxyMode     string `validate:"oneof=no-proxy system basic ntlm"`
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string // Never read from or written to config files
	NoProxy       string // Comma-separated list of hosts to bypass proxy
	ProxyWarmup   bool
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Backend:           constants.BackendHTTP,
		FileField:         constants.DefaultFileField,
		UnitIDField:       constants.DefaultUnitIDField,
		UnitNameField:     constants.DefaultUnitNameField,
		PageSize:          constants.DefaultPageSize,
		PageParam:         "page",
		PageSizeParam:     "limit",
		ListingIDField:    "id",
		ListingNameField:  "displayName",
		ListingMaxRetries: constants.ListingMaxRetries,
		ProxyMode:         "no-proxy",
	}
}

// LoadConfigCSV loads configuration from a CSV file
// CSV format: key,value pairs
func LoadConfigCSV(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // Return defaults if config doesn't exist
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read config CSV: %w", err)
	}

	for i, record := range records {
		if len(record) < 2 {
			continue
		}

		// Spreadsheet exports may carry a BOM or invisible characters
		key := strings.ToLower(sanitize.Field(record[0]))
		value := sanitize.Field(record[1])

		// Skip header row if it looks like a header
		if i == 0 && key == "key" {
			continue
		}

		if err := cfg.set(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", i+1, err)
		}
	}

	return cfg, nil
}

func (c *Config) set(key, value string) error {
	switch key {
	case "backend":
		c.Backend = strings.ToLower(value)
	case "upload_endpoint":
		c.UploadEndpoint = value
	case "upload_folder_id":
		c.UploadFolderID = value
	case "file_field":
		c.FileField = value
	case "unit_id_field":
		c.UnitIDField = value
	case "unit_name_field":
		c.UnitNameField = value
	case "webhook_endpoint":
		c.WebhookEndpoint = value
	case "listing_endpoint":
		c.ListingEndpoint = value
	case "page_size":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("page_size: %w", err)
		}
		c.PageSize = v
	case "page_param":
		c.PageParam = value
	case "page_size_param":
		c.PageSizeParam = value
	case "listing_results_field":
		c.ListingResultsField = value
	case "listing_id_field":
		c.ListingIDField = value
	case "listing_name_field":
		c.ListingNameField = value
	case "listing_max_retries":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("listing_max_retries: %w", err)
		}
		c.ListingMaxRetries = v
	case "requires_association":
		c.RequiresAssociation = parseBool(value)
	case "s3_bucket":
		c.S3Bucket = value
	case "s3_region":
		c.S3Region = value
	case "s3_prefix":
		c.S3Prefix = value
	case "s3_endpoint":
		c.S3Endpoint = value
	case "azure_container":
		c.AzureContainer = value
	case "azure_prefix":
		c.AzurePrefix = value
	case "proxy_mode":
		c.ProxyMode = value
	case "proxy_host":
		c.ProxyHost = value
	case "proxy_port":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("proxy_port: %w", err)
		}
		c.ProxyPort = v
	case "proxy_user":
		c.ProxyUser = value
	case "no_proxy":
		c.NoProxy = value
	case "proxy_warmup":
		c.ProxyWarmup = parseBool(value)
	case "upload_token", "listing_token", "proxy_password", "s3_secret_key", "azure_sas_url":
		// SECURITY: secrets are ignored in config files.
		// Use UPLOADER_* environment variables or the --*-token-file flags.
		if value != "" {
			log.Printf("[WARN] %s in config file is ignored for security - use the environment or a token file", key)
		}
	default:
		log.Printf("[WARN] unknown config key %q ignored", key)
	}
	return nil
}

func parseBool(value string) bool {
	return strings.ToLower(value) == "true" || value == "1"
}

// SaveConfigCSV saves configuration to a CSV file
// CSV format: key,value pairs. Secrets are never written.
func SaveConfigCSV(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write([]string{"key", "value"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, record := range cfg.records() {
		// Only write non-empty values to keep file clean
		if record[1] != "" && record[1] != "0" && record[1] != "false" {
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write record: %w", err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

// records lists the persistable settings in file order.
func (c *Config) records() [][]string {
	return [][]string{
		{"backend", c.Backend},
		{"upload_endpoint", c.UploadEndpoint},
		{"upload_folder_id", c.UploadFolderID},
		{"file_field", c.FileField},
		{"unit_id_field", c.UnitIDField},
		{"unit_name_field", c.UnitNameField},
		{"webhook_endpoint", c.WebhookEndpoint},
		{"listing_endpoint", c.ListingEndpoint},
		{"page_size", strconv.Itoa(c.PageSize)},
		{"page_param", c.PageParam},
		{"page_size_param", c.PageSizeParam},
		{"listing_results_field", c.ListingResultsField},
		{"listing_id_field", c.ListingIDField},
		{"listing_name_field", c.ListingNameField},
		{"listing_max_retries", strconv.Itoa(c.ListingMaxRetries)},
		{"requires_association", strconv.FormatBool(c.RequiresAssociation)},
		{"s3_bucket", c.S3Bucket},
		{"s3_region", c.S3Region},
		{"s3_prefix", c.S3Prefix},
		{"s3_endpoint", c.S3Endpoint},
		{"azure_container", c.AzureContainer},
		{"azure_prefix", c.AzurePrefix},
		{"proxy_mode", c.ProxyMode},
		{"proxy_host", c.ProxyHost},
		{"proxy_port", strconv.Itoa(c.ProxyPort)},
		{"proxy_user", c.ProxyUser},
		{"no_proxy", c.NoProxy},
		{"proxy_warmup", strconv.FormatBool(c.ProxyWarmup)},
	}
}

// Entries returns the effective settings as key/value rows for display.
// Secrets are masked.
func (c *Config) Entries() [][]string {
	rows := c.records()
	rows = append(rows,
		[]string{"upload_token", mask(c.UploadToken)},
		[]string{"listing_token", mask(c.ListingToken)},
		[]string{"s3_access_key", mask(c.S3AccessKey)},
		[]string{"s3_secret_key", mask(c.S3SecretKey)},
		[]string{"azure_sas_url", mask(c.AzureSASURL)},
		[]string{"proxy_password", mask(c.ProxyPassword)},
	)
	return rows
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

// Flags carries command-line overrides. Zero values mean "not set".
type Flags struct {
	UploadEndpoint   string
	WebhookEndpoint  string
	ListingEndpoint  string
	UploadTokenFile  string
	ListingTokenFile string
	Backend          string
	RequireUnit      bool
}

// MergeWithFlags applies command-line overrides on top of file and environment values.
// Priority: flags > token files > environment > config file > defaults
func (c *Config) MergeWithFlags(f Flags) error {
	if f.UploadTokenFile != "" {
		token, err := ReadTokenFile(f.UploadTokenFile)
		if err != nil {
			return fmt.Errorf("upload token: %w", err)
		}
		c.UploadToken = token
	}
	if f.ListingTokenFile != "" {
		token, err := ReadTokenFile(f.ListingTokenFile)
		if err != nil {
			return fmt.Errorf("listing token: %w", err)
		}
		c.ListingToken = token
	}
	if f.UploadEndpoint != "" {
		c.UploadEndpoint = f.UploadEndpoint
	}
	if f.WebhookEndpoint != "" {
		c.WebhookEndpoint = f.WebhookEndpoint
	}
	if f.ListingEndpoint != "" {
		c.ListingEndpoint = f.ListingEndpoint
	}
	if f.Backend != "" {
		c.Backend = strings.ToLower(f.Backend)
	}
	if f.RequireUnit {
		c.RequiresAssociation = true
	}
	return nil
}

// ConfigDir is the standard configuration directory name
const ConfigDir = "unit-uploader"

// getConfigDir returns the platform-appropriate config directory.
// - Windows: %APPDATA%\unit-uploader
// - Unix: ~/.config/unit-uploader (XDG standard)
func getConfigDir() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, ConfigDir)
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", ConfigDir)
	}
	return ""
}

// GetDefaultConfigPath returns the default config file path.
// A config.csv in the working directory wins over the per-user one.
func GetDefaultConfigPath() string {
	if _, err := os.Stat("config.csv"); err == nil {
		return "config.csv"
	}
	configDir := getConfigDir()
	if configDir == "" {
		return "config.csv"
	}
	return filepath.Join(configDir, "config.csv")
}

// ReadTokenFile reads a token from a file
// The file should contain only the token (whitespace is trimmed)
// Warns if file permissions are too open (not 0600 on Unix systems)
func ReadTokenFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat token file: %w", err)
	}

	mode := info.Mode().Perm()
	if runtime.GOOS != "windows" && mode&0077 != 0 {
		fmt.Fprintf(os.Stderr, "Warning: Token file %s has insecure permissions %04o. Consider using 'chmod 600 %s'\n", path, mode, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file is empty")
	}
	return token, nil
}
