// Package storage uploads payment receipts to an S3-compatible bucket and
// hands back a publicly resolvable URL for the stored object.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/codelabx/regdesk/internal/domain/registration"
	"github.com/codelabx/regdesk/internal/observability"
	"github.com/google/uuid"
)

type S3Config struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string // base under which uploaded keys resolve publicly
}

type ReceiptStore struct {
	client *s3.Client
	cfg    S3Config
	prom   *observability.Prom
}

func NewReceiptStore(ctx context.Context, cfg S3Config, prom *observability.Prom) (*ReceiptStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	return &ReceiptStore{client: client, cfg: cfg, prom: prom}, nil
}

func (s *ReceiptStore) observe(op string, fn func() error) error {
	if s.prom != nil {
		return s.prom.ObserveStorage(op, fn)
	}
	return fn()
}

// Upload stores a receipt under a timestamp-qualified key so uploads never
// overwrite an existing object, and returns the public URL of the object.
func (s *ReceiptStore) Upload(ctx context.Context, flow string, r *registration.Receipt) (string, error) {
	if r == nil {
		return "", fmt.Errorf("no receipt attached")
	}

	if !r.TypeAllowed() {
		return "", fmt.Errorf("receipt content type %q not allowed", r.ContentType)
	}

	key := receiptKey(flow, r.FileName, time.Now().UTC())

	err := s.observe("receipts.put", func() error {
		_, e := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.cfg.Bucket),
			Key:           aws.String(key),
			Body:          r.Data,
			ContentType:   aws.String(r.ContentType),
			ContentLength: aws.Int64(r.Size),
		})
		return e
	})

	if err != nil {
		return "", err
	}

	return s.PublicURL(key), nil
}

func (s *ReceiptStore) PublicURL(key string) string {
	base := strings.TrimRight(s.cfg.PublicBaseURL, "/")

	if base == "" {
		base = strings.TrimRight(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket
	}

	return base + "/" + key
}

// receiptKey partitions by flow and day, then qualifies with the upload
// timestamp and a random suffix to avoid collisions between simultaneous
// submissions with the same filename.
func receiptKey(flow, fileName string, now time.Time) string {
	ext := strings.ToLower(path.Ext(fileName))

	return fmt.Sprintf("receipts/%s/%s/%d-%s%s",
		flow,
		now.Format("2006-01-02"),
		now.UnixMilli(),
		uuid.NewString()[:8],
		ext,
	)
}
