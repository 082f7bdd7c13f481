// Package media re-hosts generated media on Cloudflare R2 so platforms that
// fetch by URL can reach it.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"

	config "github.com/maheshrc27/persona-scheduler/configs"
)

const maxMediaSize = 200 << 20

var (
	ErrUnsupportedType = errors.New("unsupported media type")
	ErrTooLarge        = errors.New("media exceeds size limit")
)

var allowedTypes = map[string]struct{}{
	"mp4": {}, "mov": {}, "jpg": {}, "png": {}, "webp": {},
}

// ObjectPutter is the slice of the S3 client the mirror needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type R2Mirror struct {
	client    ObjectPutter
	bucket    string
	publicURL string
	http      *http.Client
}

func NewR2Mirror(ctx context.Context, cfg config.R2) (*R2Mirror, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("loading r2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
	})
	return NewMirror(client, cfg.BucketName, cfg.PublicURL, nil), nil
}

func NewMirror(client ObjectPutter, bucket, publicURL string, httpClient *http.Client) *R2Mirror {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &R2Mirror{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		http:      httpClient,
	}
}

// Mirror downloads sourceURL, checks its type and uploads it under a fresh
// key. It returns the public URL of the copy. URLs already under the public
// prefix are returned unchanged.
func (m *R2Mirror) Mirror(ctx context.Context, sourceURL string) (string, error) {
	if m.publicURL != "" && strings.HasPrefix(sourceURL, m.publicURL+"/") {
		return sourceURL, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("error creating download request: %w", err)
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("error downloading media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status downloading media: %d", resp.StatusCode)
	}

	file, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaSize+1))
	if err != nil {
		return "", fmt.Errorf("error reading media: %w", err)
	}
	if len(file) > maxMediaSize {
		return "", ErrTooLarge
	}

	kind, err := filetype.Match(file)
	if err != nil || kind == types.Unknown {
		return "", ErrUnsupportedType
	}
	if _, ok := allowedTypes[kind.Extension]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, kind.Extension)
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("media/%s.%s", id, kind.Extension)

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ContentType: aws.String(kind.MIME.Value),
	})
	if err != nil {
		return "", fmt.Errorf("error uploading media: %w", err)
	}

	return m.publicURL + "/" + key, nil
}
