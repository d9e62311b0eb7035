package config

import (
	"fmt"
	"strconv"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "UPLOADER"

// envOverlay mirrors the settable keys as strings so an unset variable can be
// told apart from a zero value.
type envOverlay struct {
	Backend             string `envconfig:"BACKEND"`
	UploadEndpoint      string `envconfig:"UPLOAD_ENDPOINT"`
	UploadToken         string `envconfig:"UPLOAD_TOKEN"`
	UploadFolderID      string `envconfig:"UPLOAD_FOLDER_ID"`
	WebhookEndpoint     string `envconfig:"WEBHOOK_ENDPOINT"`
	ListingEndpoint     string `envconfig:"LISTING_ENDPOINT"`
	ListingToken        string `envconfig:"LISTING_TOKEN"`
	PageSize            string `envconfig:"PAGE_SIZE"`
	RequiresAssociation string `envconfig:"REQUIRES_ASSOCIATION"`
	S3Bucket            string `envconfig:"S3_BUCKET"`
	S3Region            string `envconfig:"S3_REGION"`
	S3Endpoint          string `envconfig:"S3_ENDPOINT"`
	S3AccessKey         string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey         string `envconfig:"S3_SECRET_KEY"`
	AzureSASURL         string `envconfig:"AZURE_SAS_URL"`
	AzureContainer      string `envconfig:"AZURE_CONTAINER"`
	ProxyMode           string `envconfig:"PROXY_MODE"`
	ProxyHost           string `envconfig:"PROXY_HOST"`
	ProxyPort           string `envconfig:"PROXY_PORT"`
	ProxyUser           string `envconfig:"PROXY_USER"`
	ProxyPassword       string `envconfig:"PROXY_PASSWORD"`
	NoProxy             string `envconfig:"NO_PROXY_HOSTS"`
}

// ApplyEnv overlays UPLOADER_* environment variables onto c.
// Only variables that are set and non-empty replace existing values.
func (c *Config) ApplyEnv() error {
	var env envOverlay
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	setString(&c.Backend, env.Backend)
	setString(&c.UploadEndpoint, env.UploadEndpoint)
	setString(&c.UploadToken, env.UploadToken)
	setString(&c.UploadFolderID, env.UploadFolderID)
	setString(&c.WebhookEndpoint, env.WebhookEndpoint)
	setString(&c.ListingEndpoint, env.ListingEndpoint)
	setString(&c.ListingToken, env.ListingToken)
	setString(&c.S3Bucket, env.S3Bucket)
	setString(&c.S3Region, env.S3Region)
	setString(&c.S3Endpoint, env.S3Endpoint)
	setString(&c.S3AccessKey, env.S3AccessKey)
	setString(&c.S3SecretKey, env.S3SecretKey)
	setString(&c.AzureSASURL, env.AzureSASURL)
	setString(&c.AzureContainer, env.AzureContainer)
	setString(&c.ProxyMode, env.ProxyMode)
	setString(&c.ProxyHost, env.ProxyHost)
	setString(&c.ProxyUser, env.ProxyUser)
	setString(&c.ProxyPassword, env.ProxyPassword)
	setString(&c.NoProxy, env.NoProxy)

	if env.PageSize != "" {
		v, err := strconv.Atoi(env.PageSize)
		if err != nil {
			return fmt.Errorf("%s_PAGE_SIZE: %w", EnvPrefix, err)
		}
		c.PageSize = v
	}
	if env.ProxyPort != "" {
		v, err := strconv.Atoi(env.ProxyPort)
		if err != nil {
			return fmt.Errorf("%s_PROXY_PORT: %w", EnvPrefix, err)
		}
		c.ProxyPort = v
	}
	if env.RequiresAssociation != "" {
		c.RequiresAssociation = parseBool(env.RequiresAssociation)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
