package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/dulo/internal/filex"
)

const (
	keyPrefix     = "dulo"
	uploadTimeout = 2 * time.Minute
	anonymousUser = "anonymous"
)

// Uploader is the subset of manager.Uploader the sink uses.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Options configure NewS3Sink.
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type S3Sink struct {
	uploader Uploader
	bucket   string
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// NewS3Sink builds an uploader from opts. Static keys are used when both
// are set; otherwise the default AWS credential chain applies.
func NewS3Sink(ctx context.Context, opts S3Options) (*S3Sink, error) {
	if opts.Bucket == "" {
		return nil, errors.New("S3 bucket name not set")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3SinkWithUploader(manager.NewUploader(client), opts.Bucket), nil
}

func NewS3SinkWithUploader(u Uploader, bucket string) *S3Sink {
	return &S3Sink{uploader: u, bucket: bucket}
}

// Key returns the object key for a file of owner.
func Key(owner, name string) string {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		owner = anonymousUser
	}
	return path.Join(keyPrefix, owner, name)
}

func (s *S3Sink) Save(ctx context.Context, obj Object) (string, error) {
	name, err := filex.SafeName(obj.Name)
	if err != nil {
		return "", err
	}
	key := Key(obj.Owner, name)

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(obj.Data),
	}
	if obj.ContentType != "" {
		input.ContentType = aws.String(obj.ContentType)
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	out, err := s.uploader.Upload(ctx, input)
	if err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}
	if out != nil && out.Location != "" {
		return out.Location, nil
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
