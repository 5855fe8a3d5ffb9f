package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/jrhy/livetree"
)

type S3Interface interface {
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
}

// Persist implements the livetree.Persist interface for storing and
// loading snapshots as S3 objects.
type Persist struct {
	s3         S3Interface
	BucketName string
	Prefix     string
}

// Load loads the bytes persisted in the named object. A missing object
// is reported with an error matching livetree.ErrNotFound.
func (p Persist) Load(ctx context.Context, name string) ([]byte, error) {
	input := s3.GetObjectInput{
		Bucket: aws.String(p.BucketName),
		Key:    aws.String(p.Prefix + name),
	}
	output, err := p.s3.GetObjectWithContext(ctx, &input)
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, fmt.Errorf("%s%s: %w", p.Prefix, name, livetree.ErrNotFound)
		}
		return nil, err
	}
	defer output.Body.Close()
	return io.ReadAll(output.Body)
}

// Store replaces the named object with the given bytes.
func (p Persist) Store(ctx context.Context, name string, b []byte) error {
	input := s3.PutObjectInput{
		Bucket:      aws.String(p.BucketName),
		Key:         aws.String(p.Prefix + name),
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/octet-stream"),
	}
	_, err := p.s3.PutObjectWithContext(ctx, &input)
	return err
}

// NewPersist returns a Persist that loads and stores snapshots as
// objects with the given S3 client, bucket name and key prefix.
func NewPersist(client S3Interface, bucketName, prefix string) Persist {
	return Persist{client, bucketName, prefix}
}
