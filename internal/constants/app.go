package constants

import (
	"time"
)

// Remote unit listing
const (
	// DefaultPageSize - records requested per listing page (50)
	// A page shorter than this marks the listing as exhausted.
	DefaultPageSize = 50

	// MaxPageSize - upper bound accepted for page_size in config
	MaxPageSize = 500

	// FirstPage - listing page cursor starts at 1
	FirstPage = 1
)

// Upload batch
const (
	// BatchSuccessMessage - fixed message sent to the completion webhook
	BatchSuccessMessage = "Upload concluído com sucesso!"

	// DefaultFileField - multipart field carrying the raw file bytes
	DefaultFileField = "file"

	// DefaultUnitIDField / DefaultUnitNameField - multipart fields carrying the selected unit
	DefaultUnitIDField   = "unitId"
	DefaultUnitNameField = "unitName"

	// MetadataField - multipart part carrying Drive-style JSON metadata when a folder is configured
	MetadataField = "metadata"

	// WebhookTimeout - timeout for the completion webhook call
	WebhookTimeout = 30 * time.Second

	// ListingTimeout - timeout for a single listing page request
	ListingTimeout = 60 * time.Second
)

// Retry configuration (listing endpoint only; uploads are never retried)
const (
	// ListingMaxRetries - retries for an idempotent listing GET
	ListingMaxRetries = 3

	// RetryInitialDelay - initial delay before first retry (500ms)
	RetryInitialDelay = 500 * time.Millisecond

	// RetryMaxDelay - maximum delay between retries (10s)
	RetryMaxDelay = 10 * time.Second
)

// Storage backends
const (
	BackendHTTP  = "http"
	BackendS3    = "s3"
	BackendAzure = "azure"

	// PresignExpiry - lifetime of the S3 presigned link returned as webViewLink
	PresignExpiry = 7 * 24 * time.Hour
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// UI Updates
const (
	// ProgressRefreshRate - mpb redraw interval
	ProgressRefreshRate = 150 * time.Millisecond

	// SpinnerThrottle - progressbar spinner redraw throttle
	SpinnerThrottle = 100 * time.Millisecond
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (60 seconds)
	HTTPTLSHandshakeTimeout = 60 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// ProxyWarmupTimeout - timeout for the optional proxy warmup request
	ProxyWarmupTimeout = 15 * time.Second
)
