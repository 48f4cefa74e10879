package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/smallbiznis/storefront/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.storage",
	fx.Provide(NewS3Presigner),
)

// ErrNotConfigured is returned when presigning is attempted without credentials.
var ErrNotConfigured = errors.New("storage_not_configured")

// S3Presigner signs short-lived GET URLs for private objects.
type S3Presigner struct {
	cfg    config.StorageConfig
	client *s3.PresignClient
}

// NewS3Presigner builds the presign client when every S3 setting is present.
// An unconfigured presigner is still returned so callers can report what is missing.
func NewS3Presigner(cfg config.Config, log *zap.Logger) (*S3Presigner, error) {
	p := &S3Presigner{cfg: cfg.Storage}
	if !cfg.Storage.Configured() {
		log.Warn("object storage not configured, downloads disabled",
			zap.Strings("missing", cfg.Storage.Missing()),
		)
		return p, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Storage.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.Storage.AccessKeyID,
			cfg.Storage.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Storage.BaseEndpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	p.client = s3.NewPresignClient(client)
	return p, nil
}

func (p *S3Presigner) Configured() bool {
	return p != nil && p.client != nil
}

func (p *S3Presigner) Missing() []string {
	if p == nil {
		return nil
	}
	return p.cfg.Missing()
}

// PresignGet returns a GET URL for key valid for ttl.
func (p *S3Presigner) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if !p.Configured() {
		return "", ErrNotConfigured
	}
	req, err := p.client.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}
