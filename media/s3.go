package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"foodlog"
)

type s3PutClient interface {
	PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store implements Store backed by an S3 bucket. A single PutObject is
// atomic: the object is either fully visible under its key or absent.
type S3Store struct {
	s3      s3PutClient
	bucket  string
	prefix  string
	baseURL string
}

func NewS3Store(client s3PutClient, bucket, prefix, baseURL string) *S3Store {
	return &S3Store{
		s3:      client,
		bucket:  bucket,
		prefix:  prefix,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (s *S3Store) Store(ctx context.Context, data []byte, ext string) (Ref, error) {
	if err := validate(data); err != nil {
		return "", err
	}

	key := s.prefix + NewName(ext)
	_, err := s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ContentType(data, ext)),
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to put media object to S3: %w", foodlog.ErrStorage, err)
	}

	ref := fmt.Sprintf("s3://%s/%s", s.bucket, key)
	if s.baseURL != "" {
		ref = s.baseURL + "/" + key
	}
	slog.Info("MEDIA: Stored object", "bucket", s.bucket, "key", key, "bytes", len(data))
	return Ref(ref), nil
}
