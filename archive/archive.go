// Package archive uploads scan reports and tile crops to S3-compatible
// storage for audit and offline model evaluation.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/spotlens-io/spotlens/pipeline"
	"github.com/spotlens-io/spotlens/types"
)

// Config holds configuration for the S3 archive backend.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("archive bucket is required")
	}
	return nil
}

// ObjectPutter is the S3 surface the archiver needs. Satisfied by
// *s3.Client; fakes implement it in tests.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver writes scan artifacts to S3.
type Archiver struct {
	client ObjectPutter
	config Config
}

// New creates an archiver backed by a real S3 client.
// Uses the AWS SDK default credential chain (env vars, shared config, IAM role).
func New(ctx context.Context, cfg Config) (*Archiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewWithClient(s3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

// NewWithClient creates an archiver with an injected S3 surface (for testing).
func NewWithClient(client ObjectPutter, cfg Config) *Archiver {
	return &Archiver{client: client, config: cfg}
}

// StoreReport uploads the scan report as JSON and returns its object key.
func (a *Archiver) StoreReport(ctx context.Context, report *pipeline.ScanReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("archive: marshal report: %w", err)
	}

	key := a.key(report.ScanID, "report.json")
	if err := a.put(ctx, key, data, "application/json"); err != nil {
		return "", err
	}
	return key, nil
}

// StoreTiles uploads the encoded tile crops alongside the report.
func (a *Archiver) StoreTiles(ctx context.Context, scanID string, tiles []types.Tile) error {
	for _, tile := range tiles {
		key := a.key(scanID, fmt.Sprintf("tiles/tile-%03d.jpg", tile.Index))
		if err := a.put(ctx, key, tile.Data, tile.MIMEType); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archiver) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &a.config.Bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("archive: put %s: %w", key, err)
	}
	return nil
}

func (a *Archiver) key(scanID, name string) string {
	return path.Join(a.config.Prefix, "scan_id="+scanID, name)
}
