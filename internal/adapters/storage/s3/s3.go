package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"videoproc/internal/ports"
)

// Options configures the S3 client. Credentials come from the default AWS
// chain (environment, shared config, instance role).
type Options struct {
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// Client implements ports.ObjectStore backed by Amazon S3 or an
// S3-compatible service.
type Client struct {
	s3   *s3.Client
	opts Options
}

func New(ctx context.Context, opts Options) (*Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if opts.Region == "" {
		opts.Region = cfg.Region
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})
	return &Client{s3: client, opts: opts}, nil
}

func (c *Client) Provider() string { return "s3" }

func (c *Client) GetObject(ctx context.Context, bucket, objectKey string) (io.ReadCloser, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return out.Body, nil
}

func (c *Client) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, fmt.Errorf("object_key is required")
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(in.Bucket),
		Key:    aws.String(in.ObjectKey),
		Body:   in.Reader,
	}
	if in.ContentType != "" {
		input.ContentType = aws.String(in.ContentType)
	}
	if in.Size > 0 {
		input.ContentLength = aws.Int64(in.Size)
	}

	if _, err := c.s3.PutObject(ctx, input); err != nil {
		return ports.PutObjectOutput{}, fmt.Errorf("s3 upload failed: %w", mapErr(err))
	}
	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: in.Size}, nil
}

// MakePublic applies the public-read canned ACL. Buckets with object
// ownership enforced reject ACLs; that surfaces as an error.
func (c *Client) MakePublic(ctx context.Context, bucket, objectKey string) error {
	if _, err := c.s3.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
		ACL:    types.ObjectCannedACLPublicRead,
	}); err != nil {
		return fmt.Errorf("s3 make public failed: %w", mapErr(err))
	}
	return nil
}

func (c *Client) PublicURL(bucket, objectKey string) string {
	return publicURL(c.opts, bucket, objectKey)
}

func publicURL(opts Options, bucket, objectKey string) string {
	segments := strings.Split(objectKey, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	key := strings.Join(segments, "/")

	if opts.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(opts.Endpoint, "/"), bucket, key)
	}
	if opts.UsePathStyle || opts.Region == "" {
		region := opts.Region
		if region == "" {
			region = "us-east-1"
		}
		return fmt.Sprintf("https://s3.%s.amazonaws.com/%s/%s", region, bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, opts.Region, key)
}

func mapErr(err error) error {
	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &noBucket) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", ports.ErrObjectNotFound, err)
	}
	return err
}
