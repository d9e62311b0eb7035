package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strconv"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/indextec/unit-uploader/internal/config"
	"github.com/indextec/unit-uploader/internal/constants"
	"github.com/indextec/unit-uploader/internal/http"
	"github.com/indextec/unit-uploader/internal/logging"
	"github.com/indextec/unit-uploader/internal/models"
)

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg("[RETRY] " + msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Per-attempt info is too chatty for the CLI
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("[RETRY] " + msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg("[RETRY] " + msg)
}

// ListingClient fetches pages of units from the remote listing endpoint.
// GETs are idempotent, so they go through a retrying client.
type ListingClient struct {
	httpClient *nethttp.Client
	endpoint   *url.URL
	token      string

	pageParam     string
	pageSizeParam string
	resultsField  string
	idField       string
	nameField     string

	logger *logging.Logger
}

// NewListingClient creates a listing client from cfg.
func NewListingClient(cfg *config.Config, logger *logging.Logger) (*ListingClient, error) {
	if cfg.ListingEndpoint == "" {
		return nil, fmt.Errorf("listing endpoint is empty - set listing_endpoint or UPLOADER_LISTING_ENDPOINT")
	}
	endpoint, err := url.Parse(cfg.ListingEndpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid listing endpoint: %w", err)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	httpClient, err := http.ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = cfg.ListingMaxRetries
	retryClient.RetryWaitMin = constants.RetryInitialDelay
	retryClient.RetryWaitMax = constants.RetryMaxDelay
	retryClient.Backoff = http.JitterBackoff
	retryClient.Logger = &retryLogger{logger: logger}
	// Hand the last response back instead of a generic "giving up" error
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &ListingClient{
		httpClient:    retryClient.StandardClient(),
		endpoint:      endpoint,
		token:         cfg.ListingToken,
		pageParam:     cfg.PageParam,
		pageSizeParam: cfg.PageSizeParam,
		resultsField:  cfg.ListingResultsField,
		idField:       cfg.ListingIDField,
		nameField:     cfg.ListingNameField,
		logger:        logger,
	}, nil
}

// ListUnits fetches one page of units. page starts at 1.
func (c *ListingClient) ListUnits(ctx context.Context, page, size int) ([]models.Unit, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.ListingTimeout)
	defer cancel()

	u := *c.endpoint
	q := u.Query()
	q.Set(c.pageParam, strconv.Itoa(page))
	q.Set(c.pageSizeParam, strconv.Itoa(size))
	u.RawQuery = q.Encode()

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list units page %d failed: %w", page, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("list units page %d failed: %w", page, newStatusError(resp))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read units response: %w", err)
	}

	units, err := c.decodeUnits(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode units page %d: %w", page, err)
	}

	c.logger.Debug().Int("page", page).Int("records", len(units)).Msg("Fetched units page")
	return units, nil
}

// decodeUnits accepts a bare JSON array or an object holding the array
// under the configured results field.
func (c *ListingClient) decodeUnits(body []byte) ([]models.Unit, error) {
	raw := json.RawMessage(body)
	if c.resultsField != "" {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, err
		}
		field, ok := envelope[c.resultsField]
		if !ok {
			return nil, fmt.Errorf("response has no %q field", c.resultsField)
		}
		raw = field
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var records []map[string]interface{}
	if err := dec.Decode(&records); err != nil {
		return nil, err
	}

	units := make([]models.Unit, 0, len(records))
	for i, record := range records {
		id := scalarString(record[c.idField])
		if id == "" {
			c.logger.Warn().Int("index", i).Str("field", c.idField).Msg("Skipping unit without id")
			continue
		}
		units = append(units, models.Unit{
			ID:          id,
			DisplayName: scalarString(record[c.nameField]),
		})
	}
	return units, nil
}

// scalarString renders JSON strings and numbers; anything else is empty.
func scalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return ""
	}
}
