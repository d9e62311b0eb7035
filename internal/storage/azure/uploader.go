// Package azure uploads batch files to an Azure Blob Storage container
// addressed by a SAS service URL.
package azure

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"github.com/indextec/unit-uploader/internal/config"
	"github.com/indextec/unit-uploader/internal/http"
	"github.com/indextec/unit-uploader/internal/logging"
	"github.com/indextec/unit-uploader/internal/models"
)

// blockSize is the staged block size for UploadStream.
const blockSize = 4 * 1024 * 1024

type streamAPI interface {
	UploadStream(ctx context.Context, containerName, blobName string, body io.Reader, o *azblob.UploadStreamOptions) (azblob.UploadStreamResponse, error)
}

// Uploader stores each file as a block blob under prefix[/unitID]/name.
type Uploader struct {
	client     streamAPI
	serviceURL *url.URL // without the SAS query
	container  string
	prefix     string
	logger     *logging.Logger
}

// NewUploader creates a blob client for the SAS service URL in cfg.
func NewUploader(cfg *config.Config, logger *logging.Logger) (*Uploader, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	serviceURL, err := url.Parse(cfg.AzureSASURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Azure service URL: %w", err)
	}

	httpClient, err := http.CreateOptimizedClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	client, err := azblob.NewClientWithNoCredential(cfg.AzureSASURL, &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Transport: httpClient,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	return &Uploader{
		client:     client,
		serviceURL: stripQuery(serviceURL),
		container:  cfg.AzureContainer,
		prefix:     cfg.AzurePrefix,
		logger:     logger,
	}, nil
}

func stripQuery(u *url.URL) *url.URL {
	clean := *u
	clean.RawQuery = ""
	clean.ForceQuery = false
	return &clean
}

// BlobName returns the blob a file is stored as.
func (u *Uploader) BlobName(file models.LocalFile, unit *models.Unit) string {
	parts := []string{u.prefix}
	if unit != nil {
		parts = append(parts, unit.ID)
	}
	parts = append(parts, file.Name)
	return strings.TrimPrefix(path.Join(parts...), "/")
}

// BlobURL returns the SAS-free URL of a blob. Readers need their own access to open it.
func (u *Uploader) BlobURL(blobName string) string {
	return u.serviceURL.JoinPath(u.container, blobName).String()
}

// Upload streams file into a block blob with the unit attached as metadata.
func (u *Uploader) Upload(ctx context.Context, file models.LocalFile, unit *models.Unit, onProgress func(done, total int64)) (models.UploadedFile, error) {
	f, err := file.Open()
	if err != nil {
		return models.UploadedFile{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	name := u.BlobName(file, unit)
	contentType := file.ContentType()

	opts := &azblob.UploadStreamOptions{
		BlockSize:   blockSize,
		Concurrency: 1,
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	}
	if unit != nil {
		// Metadata values must be ASCII
		unitID := url.QueryEscape(unit.ID)
		unitName := url.QueryEscape(unit.DisplayName)
		opts.Metadata = map[string]*string{
			"unitid":   &unitID,
			"unitname": &unitName,
		}
	}

	body := &progressReader{r: f, total: file.Size, onProgress: onProgress}
	if _, err := u.client.UploadStream(ctx, u.container, name, body, opts); err != nil {
		return models.UploadedFile{}, fmt.Errorf("Azure upload failed: %w", err)
	}

	link := u.BlobURL(name)
	u.logger.Debug().Str("container", u.container).Str("blob", name).Msg("Blob stored")
	return models.UploadedFile{Name: path.Base(name), Link: link}, nil
}

type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	onProgress func(done, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		if p.onProgress != nil {
			p.onProgress(p.read, p.total)
		}
	}
	return n, err
}
