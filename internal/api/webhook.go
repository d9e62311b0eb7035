package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"

	"github.com/indextec/unit-uploader/internal/config"
	"github.com/indextec/unit-uploader/internal/constants"
	"github.com/indextec/unit-uploader/internal/http"
	"github.com/indextec/unit-uploader/internal/logging"
	"github.com/indextec/unit-uploader/internal/models"
)

// WebhookClient posts the batch completion notification.
type WebhookClient struct {
	httpClient *nethttp.Client
	endpoint   string
	logger     *logging.Logger
}

type webhookPayload struct {
	Message string                `json:"message"`
	Files   []models.UploadedFile `json:"files"`
}

// NewWebhookClient creates a webhook client from cfg.
func NewWebhookClient(cfg *config.Config, logger *logging.Logger) (*WebhookClient, error) {
	if cfg.WebhookEndpoint == "" {
		return nil, fmt.Errorf("webhook endpoint is empty - set webhook_endpoint or UPLOADER_WEBHOOK_ENDPOINT")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	httpClient, err := http.ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	return &WebhookClient{
		httpClient: httpClient,
		endpoint:   cfg.WebhookEndpoint,
		logger:     logger,
	}, nil
}

// NotifyBatchComplete posts {message, files:[{name, link}]} once. It is not retried.
func (c *WebhookClient) NotifyBatchComplete(ctx context.Context, message string, files []models.UploadedFile) error {
	ctx, cancel := context.WithTimeout(ctx, constants.WebhookTimeout)
	defer cancel()

	if files == nil {
		files = []models.UploadedFile{}
	}
	body, err := json.Marshal(webhookPayload{Message: message, Files: files})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return newStatusError(resp)
	}

	c.logger.Debug().Int("files", len(files)).Int("status", resp.StatusCode).Msg("Webhook delivered")
	return nil
}
