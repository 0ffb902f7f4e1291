package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicBaseURL   string
	StorageClass    string
}

// Enabled reports whether enough is configured to build an archive.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != "" && strings.TrimSpace(c.Bucket) != ""
}

type putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ReceiptArchive keeps the PDF receipt of every paid order in an
// S3-compatible bucket under receipts/{tableId}/{orderId}.pdf.
type ReceiptArchive struct {
	bucket       string
	publicBase   string
	storageClass string
	client       putter
}

func NewReceiptArchive(ctx context.Context, cfg Config) (*ReceiptArchive, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("object store endpoint is required")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "auto"
	}

	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("object store bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			strings.TrimSpace(cfg.AccessKeyID),
			strings.TrimSpace(cfg.SecretAccessKey),
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		// MinIO and R2 want path-style addressing.
		o.UsePathStyle = true
	})

	return newReceiptArchive(client, cfg), nil
}

func newReceiptArchive(client putter, cfg Config) *ReceiptArchive {
	return &ReceiptArchive{
		bucket:       strings.TrimSpace(cfg.Bucket),
		publicBase:   strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
		storageClass: strings.TrimSpace(cfg.StorageClass),
		client:       client,
	}
}

func ReceiptKey(tableID, orderID int64) string {
	return fmt.Sprintf("receipts/%d/%d.pdf", tableID, orderID)
}

// PublicURL falls back to an s3:// URL when no public base is configured.
func (a *ReceiptArchive) PublicURL(key string) string {
	key = strings.TrimLeft(key, "/")
	if a.publicBase == "" {
		return "s3://" + a.bucket + "/" + key
	}
	return a.publicBase + "/" + key
}

func (a *ReceiptArchive) ArchiveReceipt(ctx context.Context, tableID, orderID int64, pdf []byte) (string, error) {
	key := ReceiptKey(tableID, orderID)
	input := &s3.PutObjectInput{
		Bucket:       aws.String(a.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(pdf),
		ContentType:  aws.String("application/pdf"),
		CacheControl: aws.String("private, max-age=0, no-store"),
	}
	if sc := parseStorageClass(a.storageClass); sc != nil {
		input.StorageClass = *sc
	}

	if _, err := a.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return a.PublicURL(key), nil
}

func parseStorageClass(v string) *types.StorageClass {
	v = strings.TrimSpace(strings.ToUpper(v))
	if v == "" {
		return nil
	}
	sc := types.StorageClass(v)
	return &sc
}
