// Package archive copies every reconciled receipt to S3 as JSON.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/theirongolddev/restock/internal/config"
	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/pipeline"
)

// Uploader is the subset of the S3 client the archive uses.
type Uploader interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive is a pipeline.Listener that uploads receipts.
type Archive struct {
	client Uploader
	bucket string
	prefix string
}

// New returns an Archive writing to bucket under prefix.
func New(client Uploader, bucket, prefix string) *Archive {
	return &Archive{client: client, bucket: bucket, prefix: prefix}
}

// FromConfig builds an S3 client from cfg. Static keys are used when set;
// otherwise the default AWS credential chain applies. A custom endpoint
// switches to path-style addressing for S3-compatible stores.
func FromConfig(ctx context.Context, cfg config.ArchiveConfig) (*Archive, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive: bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return New(client, cfg.Bucket, cfg.Prefix), nil
}

// Key returns the object key for a receipt: prefix/YYYY/MM/<id>.json.
func (a *Archive) Key(r model.Receipt) string {
	return path.Join(a.prefix, r.CreatedAt.UTC().Format("2006/01"), r.ID+".json")
}

// HandleEvent implements pipeline.Listener.
func (a *Archive) HandleEvent(ctx context.Context, ev pipeline.Event) error {
	if ev.Kind != pipeline.EventReceiptReconciled || ev.Receipt == nil {
		return nil
	}
	return a.Put(ctx, *ev.Receipt)
}

// Put uploads one receipt.
func (a *Archive) Put(ctx context.Context, r model.Receipt) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding receipt %s: %w", r.ID, err)
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.Key(r)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("uploading receipt %s: %w", r.ID, err)
	}
	return nil
}
