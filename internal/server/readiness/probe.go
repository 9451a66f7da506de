package readiness

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) headBucketAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// Probe is a single dependency check.
type Probe interface {
	Name() string
	Check(ctx context.Context) error
}

type pinger interface {
	PingContext(ctx context.Context) error
}

type dbProbe struct {
	db pinger
}

// NewDBProbe checks the database with a ping. *sql.DB satisfies pinger.
func NewDBProbe(db pinger) Probe {
	return &dbProbe{db: db}
}

func (p *dbProbe) Name() string { return "database" }

func (p *dbProbe) Check(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

type headBucketAPI interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type S3Settings struct {
	AccessKey    string
	SecretKey    string
	Region       string
	BaseEndpoint string
	Bucket       string
}

type bucketProbe struct {
	client headBucketAPI
	bucket string
}

var ErrNoBucket = errors.New("no bucket configured")

// NewS3Probe builds a HeadBucket probe. It returns ErrNoBucket when s has
// no bucket so the caller can skip object storage entirely.
func NewS3Probe(ctx context.Context, s S3Settings) (Probe, error) {
	if s.Bucket == "" {
		return nil, ErrNoBucket
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(s.Region)}
	if s.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKey, s.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &bucketProbe{client: client, bucket: s.Bucket}, nil
}

func (p *bucketProbe) Name() string { return "object_storage" }

func (p *bucketProbe) Check(ctx context.Context) error {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)})
	return err
}
