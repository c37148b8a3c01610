// Package source resolves an input reference to a local file the batch
// runner can read. S3 server access logs are delivered into S3 buckets, so
// besides plain local paths the tool accepts s3:// URIs; objects are
// downloaded to a temp file first. A URI ending in "/" is treated as a
// prefix: every object under it is fetched and concatenated in key order.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/time/rate"

	"github.com/sravanigadey/s3audit/internal/logging"
	"github.com/sravanigadey/s3audit/internal/metrics"
)

const s3Scheme = "s3://"

// S3Config configures access to S3-hosted log files
type S3Config struct {
	// Region is the AWS region
	Region string `yaml:"region,omitempty"`

	// Endpoint overrides the S3 endpoint, for S3-compatible services
	Endpoint string `yaml:"endpoint,omitempty"`

	// UsePathStyle forces path-style addressing
	UsePathStyle bool `yaml:"use_path_style,omitempty"`

	// RequestsPerSecond limits GetObject calls when fetching a prefix
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
}

// Resolver turns an input reference into a local path
type Resolver struct {
	config    S3Config
	logger    *logging.Logger
	collector *metrics.Collector

	// newClient is swapped by tests
	newClient func(ctx context.Context) (s3API, error)
}

// s3API is the part of the S3 client the resolver uses
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// NewResolver creates a resolver. The collector may be nil.
func NewResolver(config S3Config, logger *logging.Logger, collector *metrics.Collector) *Resolver {
	if logger == nil {
		logger = logging.Nop()
	}
	r := &Resolver{
		config:    config,
		logger:    logger.WithComponent("source"),
		collector: collector,
	}
	r.newClient = r.defaultClient
	return r
}

func (r *Resolver) defaultClient(ctx context.Context) (s3API, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if r.config.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(r.config.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var opts []func(*s3.Options)
	if r.config.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(r.config.Endpoint)
			o.UsePathStyle = r.config.UsePathStyle
		})
	}

	return s3.NewFromConfig(cfg, opts...), nil
}

// Resolve returns a local path for the given input reference and a cleanup
// function releasing any temp file it created. Local paths pass through
// untouched with a no-op cleanup.
func (r *Resolver) Resolve(ctx context.Context, uri string) (string, func(), error) {
	if !strings.HasPrefix(uri, s3Scheme) {
		return uri, func() {}, nil
	}

	bucket, key, err := splitURI(uri)
	if err != nil {
		return "", nil, err
	}

	client, err := r.newClient(ctx)
	if err != nil {
		return "", nil, err
	}

	tmp, err := os.CreateTemp("", "s3audit-*.log")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() {
		os.Remove(tmp.Name())
	}

	if strings.HasSuffix(key, "/") || key == "" {
		err = r.fetchPrefix(ctx, client, bucket, key, tmp)
	} else {
		err = r.fetchObject(ctx, client, bucket, key, tmp)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return "", nil, err
	}

	return tmp.Name(), cleanup, nil
}

// splitURI splits s3://bucket/key into its parts.
func splitURI(uri string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(uri, s3Scheme)
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("invalid S3 URI %q: no bucket", uri)
	}
	return bucket, key, nil
}

func (r *Resolver) fetchObject(ctx context.Context, client s3API, bucket, key string, dst io.Writer) error {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to fetch s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	n, err := io.Copy(dst, out.Body)
	if err != nil {
		return fmt.Errorf("failed to download s3://%s/%s: %w", bucket, key, err)
	}

	if r.collector != nil {
		r.collector.ObjectsFetched.Inc()
		r.collector.BytesFetched.Add(float64(n))
	}
	r.logger.Debug().Str("bucket", bucket).Str("key", key).Int64("bytes", n).Msg("Fetched log object")
	return nil
}

// fetchPrefix downloads every object under the prefix and concatenates
// them in key order. The limiter keeps a large prefix from hammering the
// bucket with GetObject calls.
func (r *Resolver) fetchPrefix(ctx context.Context, client s3API, bucket, prefix string, dst io.Writer) error {
	rps := r.config.RequestsPerSecond
	if rps <= 0 {
		rps = 50
	}
	limiter := rate.NewLimiter(rate.Limit(rps), 1)

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil && !strings.HasSuffix(*obj.Key, "/") {
				keys = append(keys, *obj.Key)
			}
		}
	}
	sort.Strings(keys)

	r.logger.Info().Str("bucket", bucket).Str("prefix", prefix).Int("objects", len(keys)).
		Msg("Fetching log objects under prefix")

	for _, key := range keys {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		if err := r.fetchObject(ctx, client, bucket, key, dst); err != nil {
			return err
		}
	}
	return nil
}
