// Package s3 uploads batch files to an S3 bucket and links them with
// presigned GET URLs.
package s3

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/indextec/unit-uploader/internal/config"
	"github.com/indextec/unit-uploader/internal/constants"
	"github.com/indextec/unit-uploader/internal/http"
	"github.com/indextec/unit-uploader/internal/logging"
	"github.com/indextec/unit-uploader/internal/models"
)

// putObjectAPI is the slice of *s3.Client the uploader needs.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// presignAPI is the slice of *s3.PresignClient the uploader needs.
type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Uploader puts each file as one object under prefix[/unitID]/name.
type Uploader struct {
	client  putObjectAPI
	presign presignAPI
	bucket  string
	prefix  string
	logger  *logging.Logger
}

// NewUploader builds an S3 client from cfg. Static keys are used when set;
// otherwise the default AWS credential chain applies.
func NewUploader(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Uploader, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	httpClient, err := http.CreateOptimizedClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithHTTPClient(httpClient),
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(awscreds.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
		// S3-compatible stores often reject the default CRC32 trailers
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return &Uploader{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.S3Bucket,
		prefix:  cfg.S3Prefix,
		logger:  logger,
	}, nil
}

// ObjectKey returns the key a file is stored under.
func (u *Uploader) ObjectKey(file models.LocalFile, unit *models.Unit) string {
	parts := []string{u.prefix}
	if unit != nil {
		parts = append(parts, unit.ID)
	}
	parts = append(parts, file.Name)
	return path.Join(parts...)
}

// Upload puts file in a single request and returns a presigned link to it.
func (u *Uploader) Upload(ctx context.Context, file models.LocalFile, unit *models.Unit, onProgress func(done, total int64)) (models.UploadedFile, error) {
	f, err := file.Open()
	if err != nil {
		return models.UploadedFile{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	key := u.ObjectKey(file, unit)
	metadata := map[string]string{}
	if unit != nil {
		// S3 user metadata must be ASCII
		metadata["unit-id"] = url.QueryEscape(unit.ID)
		metadata["unit-name"] = url.QueryEscape(unit.DisplayName)
	}

	body := &progressReadSeeker{file: f, total: file.Size, onProgress: onProgress}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(file.Size),
		ContentType:   aws.String(file.ContentType()),
		Metadata:      metadata,
	}, s3.WithAPIOptions(v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware))
	if err != nil {
		return models.UploadedFile{}, fmt.Errorf("S3 upload failed: %w", err)
	}

	presigned, err := u.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(constants.PresignExpiry))
	if err != nil {
		return models.UploadedFile{}, fmt.Errorf("failed to presign link: %w", err)
	}

	u.logger.Debug().Str("bucket", u.bucket).Str("key", key).Msg("Object stored")
	return models.UploadedFile{Name: path.Base(key), Link: presigned.URL}, nil
}

// progressReadSeeker reports bytes read since the last rewind. The SDK may
// seek back to the start before sending, which resets the count.
type progressReadSeeker struct {
	file       *os.File
	total      int64
	mu         sync.Mutex
	read       int64
	onProgress func(done, total int64)
}

func (p *progressReadSeeker) Read(b []byte) (int, error) {
	n, err := p.file.Read(b)
	if n > 0 {
		p.mu.Lock()
		p.read += int64(n)
		done := p.read
		p.mu.Unlock()
		if p.onProgress != nil {
			p.onProgress(done, p.total)
		}
	}
	return n, err
}

func (p *progressReadSeeker) Seek(offset int64, whence int) (int64, error) {
	pos, err := p.file.Seek(offset, whence)
	if err == nil {
		p.mu.Lock()
		p.read = pos
		p.mu.Unlock()
	}
	return pos, err
}

var _ io.ReadSeeker = (*progressReadSeeker)(nil)
