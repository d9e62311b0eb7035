package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/indextec/unit-uploader/internal/constants"
)

var validate = validator.New()

var (
	ErrMissingUploadEndpoint  = errors.New("upload_endpoint is required for the http backend")
	ErrMissingWebhookEndpoint = errors.New("webhook_endpoint is required")
	ErrMissingListingEndpoint = errors.New("listing_endpoint is required")
	ErrMissingS3Bucket        = errors.New("s3_bucket is required for the s3 backend")
	ErrMissingS3Region        = errors.New("s3_region is required for the s3 backend")
	ErrMissingAzureSASURL     = errors.New("UPLOADER_AZURE_SAS_URL is required for the azure backend")
	ErrMissingAzureContainer  = errors.New("azure_container is required for the azure backend")
	ErrIncompleteS3Keys       = errors.New("s3 access key and secret key must be set together")
	ErrMissingProxyHost       = errors.New("proxy_host is required for basic and ntlm proxy modes")
)

// Validate checks field formats shared by every command.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if (c.ProxyMode == "basic" || c.ProxyMode == "ntlm") && c.ProxyHost == "" {
		return ErrMissingProxyHost
	}
	return nil
}

// ValidateForUpload checks what a batch upload needs: a usable backend and
// the completion webhook. A listing endpoint is only required when a unit
// must be associated with the batch.
func (c *Config) ValidateForUpload() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.WebhookEndpoint == "" {
		return ErrMissingWebhookEndpoint
	}

	switch c.Backend {
	case constants.BackendHTTP:
		if c.UploadEndpoint == "" {
			return ErrMissingUploadEndpoint
		}
	case constants.BackendS3:
		if c.S3Bucket == "" {
			return ErrMissingS3Bucket
		}
		if c.S3Region == "" {
			return ErrMissingS3Region
		}
		if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
			return ErrIncompleteS3Keys
		}
	case constants.BackendAzure:
		if c.AzureSASURL == "" {
			return ErrMissingAzureSASURL
		}
		if c.AzureContainer == "" {
			return ErrMissingAzureContainer
		}
	}
	return nil
}

// ValidateForListing checks what the unit listing needs.
func (c *Config) ValidateForListing() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ListingEndpoint == "" {
		return ErrMissingListingEndpoint
	}
	return nil
}
