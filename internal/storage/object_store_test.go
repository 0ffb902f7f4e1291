package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (r *recordingPutter) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.input = params
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	r.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestArchiveReceipt(t *testing.T) {
	p := &recordingPutter{}
	a := newReceiptArchive(p, Config{Bucket: "pos", PublicBaseURL: "https://cdn.example.com/", StorageClass: "standard"})

	url, err := a.ArchiveReceipt(context.Background(), 4, 19, []byte("%PDF-1.3"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/receipts/4/19.pdf", url)
	assert.Equal(t, "pos", aws.ToString(p.input.Bucket))
	assert.Equal(t, "receipts/4/19.pdf", aws.ToString(p.input.Key))
	assert.Equal(t, "application/pdf", aws.ToString(p.input.ContentType))
	assert.Equal(t, types.StorageClass("STANDARD"), p.input.StorageClass)
	assert.Equal(t, []byte("%PDF-1.3"), p.body)
}

func TestArchiveReceiptWithoutPublicBase(t *testing.T) {
	a := newReceiptArchive(&recordingPutter{}, Config{Bucket: "pos"})
	url, err := a.ArchiveReceipt(context.Background(), 1, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, "s3://pos/receipts/1/2.pdf", url)
}

func TestArchiveReceiptError(t *testing.T) {
	a := newReceiptArchive(&recordingPutter{err: errors.New("denied")}, Config{Bucket: "pos"})
	_, err := a.ArchiveReceipt(context.Background(), 1, 2, nil)
	assert.ErrorContains(t, err, "receipts/1/2.pdf")
}

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.False(t, Config{Endpoint: "minio:9000"}.Enabled())
	assert.True(t, Config{Endpoint: "minio:9000", Bucket: "pos"}.Enabled())
}

func TestNewReceiptArchiveValidates(t *testing.T) {
	_, err := NewReceiptArchive(context.Background(), Config{Bucket: "pos"})
	assert.Error(t, err)
	_, err = NewReceiptArchive(context.Background(), Config{Endpoint: "minio:9000"})
	assert.Error(t, err)
}
