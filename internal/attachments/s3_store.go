package attachments

import (
	"bytes"
	"context"
	"io"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"
)

// S3Store keeps attachments as objects under prefix in one bucket. The stored
// path is the object key.
type S3Store struct {
	client s3iface.S3API
	bucket string
	prefix string
}

func NewS3Store(client s3iface.S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// NewS3Client builds a client from explicit settings. Empty keys fall back to
// the SDK's default credential chain; a non-empty endpoint selects path-style
// addressing for S3-compatible servers.
func NewS3Client(region, endpoint, accessKeyID, secretAccessKey string) (s3iface.S3API, error) {
	cfg := &aws.Config{Region: aws.String(region)}
	if accessKeyID != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKeyID, secretAccessKey, "")
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create AWS session")
	}
	return s3.New(sess), nil
}

func (s *S3Store) Store(ctx context.Context, data []byte, ext string) (string, error) {
	if err := ValidateExtension(ext); err != nil {
		return "", err
	}
	key := path.Join(s.prefix, generateName(ext))

	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ContentType(key)),
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to upload file to S3")
	}
	return key, nil
}

func (s *S3Store) Retrieve(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok {
			switch aerr.Code() {
			case s3.ErrCodeNoSuchKey, "NotFound":
				return nil, ErrNotFound
			}
		}
		return nil, errors.Wrap(err, "failed to download file from S3")
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read S3 object")
	}
	return data, nil
}
