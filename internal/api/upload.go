package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/textproto"
	"strings"
	"sync/atomic"

	"github.com/indextec/unit-uploader/internal/config"
	"github.com/indextec/unit-uploader/internal/constants"
	"github.com/indextec/unit-uploader/internal/http"
	"github.com/indextec/unit-uploader/internal/logging"
	"github.com/indextec/unit-uploader/internal/models"
)

// FileUploader posts one file per request as a streamed multipart body.
type FileUploader struct {
	httpClient *nethttp.Client
	endpoint   string
	token      string
	folderID   string

	fileField     string
	unitIDField   string
	unitNameField string

	logger *logging.Logger
}

// driveMetadata is the JSON part Google Drive style endpoints expect ahead of the file.
type driveMetadata struct {
	Name    string   `json:"name"`
	Parents []string `json:"parents,omitempty"`
}

type uploadResponse struct {
	Name        string `json:"name"`
	WebViewLink string `json:"webViewLink"`
}

// NewFileUploader creates a multipart uploader from cfg.
func NewFileUploader(cfg *config.Config, logger *logging.Logger) (*FileUploader, error) {
	if cfg.UploadEndpoint == "" {
		return nil, fmt.Errorf("upload endpoint is empty - set upload_endpoint or UPLOADER_UPLOAD_ENDPOINT")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	httpClient, err := http.CreateOptimizedClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	return &FileUploader{
		httpClient:    httpClient,
		endpoint:      cfg.UploadEndpoint,
		token:         cfg.UploadToken,
		folderID:      cfg.UploadFolderID,
		fileField:     cfg.FileField,
		unitIDField:   cfg.UnitIDField,
		unitNameField: cfg.UnitNameField,
		logger:        logger,
	}, nil
}

// Upload sends file with the unit fields attached when unit is non-nil.
// onProgress is called from the body-writer goroutine with bytes read so far.
func (u *FileUploader) Upload(ctx context.Context, file models.LocalFile, unit *models.Unit, onProgress func(done, total int64)) (models.UploadedFile, error) {
	f, err := file.Open()
	if err != nil {
		return models.UploadedFile{}, fmt.Errorf("failed to open %s: %w", file.Name, err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	defer pr.Close() // unblocks the writer if the server answers early
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(u.writeBody(mw, file, f, unit, onProgress))
	}()

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPost, u.endpoint, pr)
	if err != nil {
		pr.CloseWithError(err)
		return models.UploadedFile{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return models.UploadedFile{}, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return models.UploadedFile{}, newStatusError(resp)
	}

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.UploadedFile{}, fmt.Errorf("failed to decode upload response: %w", err)
	}
	if result.Name == "" || result.WebViewLink == "" {
		return models.UploadedFile{}, ErrIncompleteResponse
	}

	u.logger.Debug().Str("file", file.Name).Str("link", result.WebViewLink).Msg("Upload accepted")
	return models.UploadedFile{Name: result.Name, Link: result.WebViewLink}, nil
}

func (u *FileUploader) writeBody(mw *multipart.Writer, file models.LocalFile, content io.Reader, unit *models.Unit, onProgress func(done, total int64)) error {
	if u.folderID != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, constants.MetadataField))
		h.Set("Content-Type", "application/json")
		part, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		meta := driveMetadata{Name: file.Name, Parents: []string{u.folderID}}
		if err := json.NewEncoder(part).Encode(meta); err != nil {
			return err
		}
	}

	if unit != nil {
		if err := mw.WriteField(u.unitIDField, unit.ID); err != nil {
			return err
		}
		if err := mw.WriteField(u.unitNameField, unit.DisplayName); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(u.fileField), escapeQuotes(file.Name)))
	h.Set("Content-Type", file.ContentType())
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}

	reader := &progressReader{r: content, total: file.Size, onProgress: onProgress}
	if _, err := io.Copy(part, reader); err != nil {
		return err
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// progressReader reports cumulative bytes read.
type progressReader struct {
	r          io.Reader
	total      int64
	read       atomic.Int64
	onProgress func(done, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.onProgress != nil {
		p.onProgress(p.read.Add(int64(n)), p.total)
	}
	return n, err
}
