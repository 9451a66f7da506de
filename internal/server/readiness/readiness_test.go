package readiness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/pwkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger          { return n }

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

type fakeBucket struct {
	bucket string
	err    error
}

func (f *fakeBucket) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.bucket = aws.ToString(in.Bucket)
	return &s3.HeadBucketOutput{}, f.err
}

func status(t *testing.T, hs *health.Server, svc string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: svc})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestChecker_Update(t *testing.T) {
	hs := health.NewServer()
	db := &dbProbe{}
	c := NewChecker(hs, time.Second, nopLogger{}, []string{"svc"}, db)

	db.db = fakePinger{}
	assert.True(t, c.Update(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, hs, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, hs, "svc"))

	db.db = fakePinger{err: errors.New("connection refused")}
	assert.False(t, c.Update(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, hs, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, hs, "svc"))
}

func TestChecker_CheckJoinsFailures(t *testing.T) {
	boom := errors.New("boom")
	bucket := &bucketProbe{client: &fakeBucket{err: boom}, bucket: "vault"}
	c := NewChecker(health.NewServer(), time.Second, nopLogger{}, nil,
		NewDBProbe(fakePinger{err: boom}), bucket)

	err := c.Check(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "database: boom")
	assert.Contains(t, err.Error(), "object_storage: boom")
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	hs := health.NewServer()
	c := NewChecker(hs, 10*time.Millisecond, nopLogger{}, nil, NewDBProbe(fakePinger{}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestNewS3Probe(t *testing.T) {
	origLoad, origClient := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() { loadDefaultAWSConfig, newS3ClientFromConfig = origLoad, origClient })

	t.Run("no bucket", func(t *testing.T) {
		_, err := NewS3Probe(context.Background(), S3Settings{})
		assert.ErrorIs(t, err, ErrNoBucket)
	})

	t.Run("path style endpoint", func(t *testing.T) {
		fb := &fakeBucket{}
		var opts s3.Options
		loadDefaultAWSConfig = func(context.Context, ...func(*config.LoadOptions) error) (aws.Config, error) {
			return aws.Config{Region: "us-east-1"}, nil
		}
		newS3ClientFromConfig = func(_ aws.Config, optFns ...func(*s3.Options)) headBucketAPI {
			for _, fn := range optFns {
				fn(&opts)
			}
			return fb
		}

		p, err := NewS3Probe(context.Background(), S3Settings{
			AccessKey: "ak", SecretKey: "sk", Region: "us-east-1",
			BaseEndpoint: "http://minio:9000", Bucket: "vault",
		})
		require.NoError(t, err)
		require.NoError(t, p.Check(context.Background()))

		assert.Equal(t, "vault", fb.bucket)
		assert.True(t, opts.UsePathStyle)
		assert.Equal(t, "http://minio:9000", aws.ToString(opts.BaseEndpoint))
		assert.Equal(t, "object_storage", p.Name())
	})

	t.Run("config error", func(t *testing.T) {
		loadDefaultAWSConfig = func(context.Context, ...func(*config.LoadOptions) error) (aws.Config, error) {
			return aws.Config{}, errors.New("bad profile")
		}
		_, err := NewS3Probe(context.Background(), S3Settings{Bucket: "vault"})
		assert.ErrorContains(t, err, "aws config")
	})
}
