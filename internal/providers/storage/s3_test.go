package storage

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/smallbiznis/storefront/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPresignGetSignsShortLivedURL(t *testing.T) {
	cfg := config.Config{Storage: config.StorageConfig{
		Region:          "us-east-1",
		AccessKeyID:     "AKIATEST",
		SecretAccessKey: "secret",
		Bucket:          "storefront-assets",
		BaseEndpoint:    "http://localhost:9000",
	}}

	p, err := NewS3Presigner(cfg, zap.NewNop())
	require.NoError(t, err)
	require.True(t, p.Configured())

	raw, err := p.PresignGet(context.Background(), "products/diy/bundle.zip", 5*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/storefront-assets/products/diy/bundle.zip", u.Path)
	assert.Equal(t, "300", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestUnconfiguredPresignerReportsMissingKeys(t *testing.T) {
	p, err := NewS3Presigner(config.Config{Storage: config.StorageConfig{Region: "us-east-1"}}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, p.Configured())
	assert.Equal(t, []string{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "S3_BUCKET"}, p.Missing())

	_, err = p.PresignGet(context.Background(), "key", time.Minute)
	assert.True(t, errors.Is(err, ErrNotConfigured))
}
